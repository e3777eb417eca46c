package models

import "encoding/json"

// Unavailable marks a certificate field the signing service did not provide.
const Unavailable = "unavailable"

type SubjectAttributes struct {
	GivenName    string `json:"given_name,omitempty" yaml:"given_name,omitempty"`
	Surname      string `json:"surname,omitempty" yaml:"surname,omitempty"`
	CommonName   string `json:"common_name,omitempty" yaml:"common_name,omitempty"`
	DNQ          string `json:"dnq,omitempty" yaml:"dnq,omitempty"`
	SerialNumber string `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
	Country      string `json:"country,omitempty" yaml:"country,omitempty"`
}

// Certificate is a signing certificate as returned to the host, with the
// identifier derived from its subject.
type Certificate struct {
	CertificateID  string            `json:"certificateId" yaml:"certificateId"`
	Subject        string            `json:"subject" yaml:"subject"`
	SubjectInfo    SubjectAttributes `json:"subject_info" yaml:"subject_info"`
	Issuer         string            `json:"issuer" yaml:"issuer"`
	Status         string            `json:"status" yaml:"status"`
	ExpirationDate string            `json:"expirationDate" yaml:"expirationDate"`
}

type CertificateList struct {
	Certificates []Certificate `json:"certificates" yaml:"certificates"`
	TotalCount   int           `json:"total_count" yaml:"total_count"`
	// Original holds the service response verbatim when it was not a list.
	Original json.RawMessage `json:"original_data,omitempty" yaml:"-"`
}

// RawCertificate is one record of the certificates endpoint.
type RawCertificate struct {
	Subject        *string `json:"subject"`
	Issuer         *string `json:"issuer"`
	Status         *string `json:"status"`
	ExpirationDate *string `json:"expirationDate"`
}
