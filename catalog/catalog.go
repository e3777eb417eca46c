// Package catalog normalizes the certificate list returned by the signing
// service into records carrying a derived identifier and parsed subject.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hm-edu/remotesign/models"
	"github.com/hm-edu/remotesign/subject"
)

var ErrNoCertificates = errors.New("no certificates available")

// TransformError reports a certificate list that could not be normalized.
// Original is the untouched service response.
type TransformError struct {
	Original json.RawMessage
	Err      error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("failed to transform certificates: %v", e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// Normalize turns the raw certificates response into a CertificateList. A
// response that is not a JSON array is passed through in Original.
func Normalize(raw json.RawMessage) (*models.CertificateList, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return &models.CertificateList{Certificates: []models.Certificate{}, Original: raw}, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, &TransformError{Original: raw, Err: err}
	}

	certificates := make([]models.Certificate, 0, len(records))
	for i, record := range records {
		var rc models.RawCertificate
		if err := json.Unmarshal(record, &rc); err != nil {
			return nil, &TransformError{Original: raw, Err: fmt.Errorf("record %d: %w", i, err)}
		}
		certificates = append(certificates, normalizeRecord(rc))
	}

	return &models.CertificateList{
		Certificates: certificates,
		TotalCount:   len(certificates),
	}, nil
}

func normalizeRecord(rc models.RawCertificate) models.Certificate {
	var attrs subject.Attributes
	if rc.Subject != nil {
		attrs = subject.Parse(*rc.Subject)
	} else {
		attrs = subject.Attributes{}
	}

	return models.Certificate{
		CertificateID:  Identifier(attrs),
		Subject:        orUnavailable(rc.Subject),
		SubjectInfo:    attrs.Subject(),
		Issuer:         orUnavailable(rc.Issuer),
		Status:         orUnavailable(rc.Status),
		ExpirationDate: orUnavailable(rc.ExpirationDate),
	}
}

// Identifier derives the certificate id: DNQ, then CN, then
// models.Unavailable.
func Identifier(attrs subject.Attributes) string {
	if dnq, ok := attrs.Lookup(subject.DNQ); ok {
		return dnq
	}
	if cn, ok := attrs.Lookup(subject.CommonName); ok {
		return cn
	}
	return models.Unavailable
}

func orUnavailable(s *string) string {
	if s == nil {
		return models.Unavailable
	}
	return *s
}

// First returns the first certificate of the list.
func First(list *models.CertificateList) (models.Certificate, error) {
	if list == nil || len(list.Certificates) == 0 {
		return models.Certificate{}, ErrNoCertificates
	}
	return list.Certificates[0], nil
}

// ByID returns the certificate whose derived identifier equals id.
func ByID(list *models.CertificateList, id string) (models.Certificate, bool) {
	if list == nil {
		return models.Certificate{}, false
	}
	for _, c := range list.Certificates {
		if c.CertificateID == id {
			return c, true
		}
	}
	return models.Certificate{}, false
}
