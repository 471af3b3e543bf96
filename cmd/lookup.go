package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/maqua/member-lookup/internal/profile"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <identifier>",
	Short: "Look up one member profile and print it as JSON",
	Long:  "Runs a single lookup against the CRM gateway. The identifier may be a customer code, a phone number, or a customer name.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		identifier := strings.TrimSpace(strings.Join(args, " "))

		builder := newProfileBuilder()
		res := builder.Build(cmd.Context(), identifier)

		out := map[string]any{}
		switch res.Kind {
		case profile.KindOK:
			out["code"] = "OK"
			out["profile"] = res.Profile
		case profile.KindChoices:
			out["code"] = "CHOICES"
			out["message"] = res.Message
			out["matches"] = res.Matches
			out["keyword"] = res.Keyword
		case profile.KindInvalid:
			out["code"] = "INVALID"
			out["message"] = res.Message
		case profile.KindNotFound:
			out["code"] = "NOT_FOUND"
			out["message"] = res.Message
		default:
			return eris.Errorf("unhandled lookup result kind %d", int(res.Kind))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return eris.Wrap(enc.Encode(out), "encode result")
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
