package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hm-edu/remotesign/models"
	"github.com/hm-edu/remotesign/placement"
	"github.com/hm-edu/remotesign/signature"
)

type SignFlags struct {
	SAT         string
	Link        string
	Pages       string
	Position    string
	Rect        string
	Signer      string
	Invisible   bool
	Upload      bool
	AnalyzeLink string
}

var signFlags SignFlags

var signCmd = &cobra.Command{
	Use:     "sign",
	Aliases: []string{"sign_document"},
	Short:   "Sign a PDF with a PAdES signature and publish it",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadOrExit(cmd)
		if cmd.Flags().Changed("upload") {
			cfg.UploadEnabled = signFlags.Upload
		}
		validateOrExit(cfg, cfg.UploadEnabled)

		in := signature.SignInput{
			AccessToken:   session.Token,
			CertificateID: session.CertificateID,
			TransactionID: session.TransactionID,
			SAT:           signFlags.SAT,
			PIN:           session.PIN,
			DocumentURL:   signFlags.Link,
			PageSelector:  placement.PageSelector(signFlags.Pages),
			Position:      placement.Position(signFlags.Position),
			SignerName:    signFlags.Signer,
			Invisible:     signFlags.Invisible,
		}
		if in.AccessToken == "" {
			in.Credential = &models.Credential{
				Username: session.Username,
				Password: session.Password,
			}
		}
		if signFlags.Rect != "" {
			rect, err := placement.ParseRect(signFlags.Rect)
			if err != nil {
				fail("invalid --rect: %v", err)
			}
			in.CustomRect = rect
		}

		o := newOrchestrator(cmd, cfg, cfg.UploadEnabled)
		emit(o.Sign(cmd.Context(), in))
	},
}

var analyzeCmd = &cobra.Command{
	Use:     "analyze",
	Aliases: []string{"analyze_pdf"},
	Short:   "Look for signature fields and signature hints in a PDF",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := mustConfig(cmd, false)
		o := newOrchestrator(cmd, cfg, false)
		emit(o.AnalyzeDocument(cmd.Context(), signFlags.AnalyzeLink))
	},
}

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List the named stamp positions and their rectangles",
	Run: func(cmd *cobra.Command, args []string) {
		emit(signature.OK(placement.Positions()))
	},
}

func init() {
	f := signCmd.Flags()
	f.StringVarP(&session.Token, "token", "t", "", "Access token (or SIGN_ACCESS_TOKEN); username and password are used when empty")
	f.StringVarP(&session.Username, "username", "u", "", "Username (or SIGN_USERNAME)")
	f.StringVarP(&session.Password, "password", "p", "", "Password (or SIGN_PASSWORD)")
	f.StringVar(&session.CertificateID, "certificate-id", "", "Certificate id (or SIGN_CERTIFICATE_ID)")
	f.StringVar(&session.TransactionID, "transaction-id", "", "Transaction id returned by the challenge")
	f.StringVar(&session.PIN, "pin", "", "Signature PIN (or SIGN_PIN)")
	f.StringVar(&signFlags.SAT, "sat", "", "Signature authorization token returned by authorize")
	f.StringVar(&signFlags.Link, "link", "", "URL of the PDF to sign")
	f.StringVar(&signFlags.Pages, "pages", string(placement.AllPages), "Pages to stamp (first-page, last-page, all-pages)")
	f.StringVar(&signFlags.Position, "position", string(placement.BottomRight), "Stamp position (bottom-right, bottom-left, bottom-center, top-right, top-left, top-center, center, custom)")
	f.StringVar(&signFlags.Rect, "rect", "", "Rectangle for the custom position as llx,lly,urx,ury")
	f.StringVar(&signFlags.Signer, "signer", "", "Name shown in the stamp (default: common name of the certificate)")
	f.BoolVar(&signFlags.Invisible, "invisible", false, "Sign without a visible stamp")
	f.BoolVar(&signFlags.Upload, "upload", true, "Publish the signed document to object storage (default from upload_enabled)")

	analyzeCmd.Flags().StringVar(&signFlags.AnalyzeLink, "link", "", "URL of the PDF to analyze")

	rootCmd.AddCommand(signCmd, analyzeCmd, positionsCmd)
}
