package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hm-edu/remotesign/client"
	"github.com/hm-edu/remotesign/config"
	"github.com/hm-edu/remotesign/models"
	"github.com/hm-edu/remotesign/signature"
	"github.com/hm-edu/remotesign/storage"
)

type SessionFlags struct {
	Username      string
	Password      string
	Token         string
	CertificateID string
	TransactionID string
	OTP           string
	PIN           string
	All           bool
}

var session SessionFlags

func newOrchestrator(cmd *cobra.Command, cfg config.Config, upload bool) *signature.Orchestrator {
	var options []signature.Option
	if upload {
		publisher, err := storage.NewPublisher(cmd.Context(), cfg.Spaces)
		if err != nil {
			fail("failed to set up object storage: %v", err)
		}
		options = append(options, signature.WithPublisher(publisher))
	}
	return signature.New(cfg, client.New(cfg, client.WithDebug(cfg.Debug)), options...)
}

var authTokenCmd = &cobra.Command{
	Use:     "auth-token",
	Aliases: []string{"auth_token"},
	Short:   "Exchange username and password for an access token",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig(cmd, false)
		o := newOrchestrator(cmd, cfg, false)
		emit(o.Authenticate(cmd.Context(), models.Credential{
			Username: session.Username,
			Password: session.Password,
		}))
	},
}

var certificatesCmd = &cobra.Command{
	Use:     "certificates",
	Aliases: []string{"get_certificates"},
	Short:   "Show the signing certificate of the user",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig(cmd, false)
		o := newOrchestrator(cmd, cfg, false)
		token := session.Token
		if session.All {
			emit(o.Certificates(cmd.Context(), token))
			return
		}
		emit(o.FirstCertificate(cmd.Context(), token))
	},
}

var challengeCmd = &cobra.Command{
	Use:     "challenge",
	Aliases: []string{"request_smsp_challenge"},
	Short:   "Send an OTP to the user by SMS",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig(cmd, false)
		o := newOrchestrator(cmd, cfg, false)
		emit(o.RequestChallenge(cmd.Context(), session.Token))
	},
}

var authorizeCmd = &cobra.Command{
	Use:     "authorize",
	Aliases: []string{"authorize_smsp"},
	Short:   "Verify OTP and PIN and obtain a signature authorization token",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig(cmd, false)
		o := newOrchestrator(cmd, cfg, false)
		slog.Debug("Authorizing", slog.String("transaction", session.TransactionID))
		emit(o.Authorize(cmd.Context(), session.Token, client.AuthorizeInput{
			CertificateID: session.CertificateID,
			TransactionID: session.TransactionID,
			OTP:           session.OTP,
			PIN:           session.PIN,
		}))
	},
}

func init() {
	authTokenCmd.Flags().StringVarP(&session.Username, "username", "u", "", "Username (or SIGN_USERNAME)")
	authTokenCmd.Flags().StringVarP(&session.Password, "password", "p", "", "Password (or SIGN_PASSWORD)")

	for _, c := range []*cobra.Command{certificatesCmd, challengeCmd, authorizeCmd} {
		c.Flags().StringVarP(&session.Token, "token", "t", "", "Access token (or SIGN_ACCESS_TOKEN)")
	}
	certificatesCmd.Flags().BoolVar(&session.All, "all", false, "List every certificate instead of the first one")

	authorizeCmd.Flags().StringVar(&session.CertificateID, "certificate-id", "", "Certificate id (or SIGN_CERTIFICATE_ID)")
	authorizeCmd.Flags().StringVar(&session.TransactionID, "transaction-id", "", "Transaction id returned by the challenge")
	authorizeCmd.Flags().StringVar(&session.OTP, "otp", "", "One time password received by SMS")
	authorizeCmd.Flags().StringVar(&session.PIN, "pin", "", "Signature PIN (or SIGN_PIN)")

	rootCmd.AddCommand(authTokenCmd, certificatesCmd, challengeCmd, authorizeCmd)
}
