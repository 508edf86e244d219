package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/navigator"
	"github.com/sells-group/procure-cli/internal/pattern"
	"github.com/sells-group/procure-cli/internal/vault"
)

var credsCmd = &cobra.Command{
	Use:   "creds",
	Short: "Manage portal credentials",
}

var (
	credSite    string
	credFamily  string
	credAccount string
	credSecret  string
	credLegal   string
	credTaxID   string
	credContact string
	credEmail   string
	credPhone   string
)

var credsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Store an encrypted credential for a site",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		vlt, err := vault.New(ctx, st, cfg.Vault)
		if err != nil {
			return err
		}

		reg := model.BusinessRegistration{
			LegalName:    credLegal,
			TaxID:        credTaxID,
			ContactName:  credContact,
			ContactEmail: credEmail,
			ContactPhone: credPhone,
		}
		cred, err := vlt.Put(ctx, credSite, model.PortalFamily(credFamily), credAccount, credSecret, reg)
		if err != nil {
			return err
		}

		zap.L().Info("credential added",
			zap.String("id", cred.ID),
			zap.String("site", credSite),
			zap.String("family", credFamily),
		)
		return nil
	},
}

var credsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a stored credential by logging in",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		vlt, err := vault.New(ctx, st, cfg.Vault)
		if err != nil {
			return err
		}

		family := model.PortalFamily(credFamily)
		cred, secret, err := vlt.Get(ctx, credSite, family)
		if err != nil {
			return err
		}
		if cred == nil {
			return eris.Errorf("no credential stored for %s/%s", credSite, credFamily)
		}

		profile, err := st.GetSiteProfile(ctx, credSite)
		if err != nil {
			return err
		}
		if profile == nil || profile.LoginURL == "" {
			return eris.Errorf("no login URL known for %s; classify the site first", credSite)
		}

		nav, err := navigator.NewRod(cfg.Navigator)
		if err != nil {
			return err
		}
		defer nav.Close() //nolint:errcheck

		steps := pattern.DefaultTemplate(family).Login
		status := vault.NewVerifier(vlt, nav).Verify(ctx, cred, secret, profile.LoginURL, steps)

		fmt.Printf("%s/%s: %s", credSite, credFamily, status)
		if cred.FailureReason != "" {
			fmt.Printf(" (%s)", cred.FailureReason)
		}
		fmt.Println()
		return nil
	},
}

var credsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a stored credential",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		vlt, err := vault.New(ctx, st, cfg.Vault)
		if err != nil {
			return err
		}

		n, err := vlt.Delete(ctx, credSite, model.PortalFamily(credFamily))
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d credential(s)\n", n)
		return nil
	},
}

var credsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Summarize stored credentials by family and status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		vlt, err := vault.New(ctx, st, cfg.Vault)
		if err != nil {
			return err
		}

		counts, err := vlt.Summary(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FAMILY\tSTATUS\tCOUNT")
		for _, c := range counts {
			fmt.Fprintf(w, "%s\t%s\t%d\n", c.Family, c.Status, c.Count)
		}
		return w.Flush()
	},
}

func init() {
	for _, c := range []*cobra.Command{credsAddCmd, credsVerifyCmd, credsDeleteCmd} {
		c.Flags().StringVar(&credSite, "site", "", "site identity, e.g. bids.lacity.org (required)")
		c.Flags().StringVar(&credFamily, "family", string(model.FamilyUnknown), "portal family")
		_ = c.MarkFlagRequired("site")
	}
	credsAddCmd.Flags().StringVar(&credAccount, "account", "", "account identifier (required)")
	credsAddCmd.Flags().StringVar(&credSecret, "secret", "", "password or API secret (required)")
	credsAddCmd.Flags().StringVar(&credLegal, "legal-name", "", "registered business legal name")
	credsAddCmd.Flags().StringVar(&credTaxID, "tax-id", "", "business tax ID")
	credsAddCmd.Flags().StringVar(&credContact, "contact", "", "contact name")
	credsAddCmd.Flags().StringVar(&credEmail, "email", "", "contact email")
	credsAddCmd.Flags().StringVar(&credPhone, "phone", "", "contact phone")
	_ = credsAddCmd.MarkFlagRequired("account")
	_ = credsAddCmd.MarkFlagRequired("secret")

	credsCmd.AddCommand(credsAddCmd, credsVerifyCmd, credsDeleteCmd, credsListCmd)
	rootCmd.AddCommand(credsCmd)
}
