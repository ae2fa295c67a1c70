package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dispatch-cli/internal/model"
	"github.com/sells-group/dispatch-cli/internal/parser"
	"github.com/sells-group/dispatch-cli/internal/verify"
)

var (
	verifyCorrections string
	verifyOutput      string
)

// correctionsFile is the YAML shape accepted by --corrections.
type correctionsFile struct {
	Corrections []correction `yaml:"corrections"`
}

type correction struct {
	Order string `yaml:"order"`
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Apply dispatcher corrections and approve the order set",
	Long:  "Walks a corrections file through the verification flow: each fix is validated like a live edit, hard failures are reported, and the approved orders are written out.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := parser.ParseOrdersFile(args[0], parser.Options{})
		if err != nil {
			return err
		}

		session := verify.NewSession(res.Orders, res.Columns, cfg.Issues, verify.Callbacks{})
		fmt.Printf("%d order(s), %d issue(s) flagged\n", len(res.Orders), len(session.Issues()))

		if verifyCorrections != "" {
			if err := applyCorrections(session, verifyCorrections); err != nil {
				return err
			}
		}

		approved := session.ApproveAll()
		if session.MissingTripNumbers() {
			fmt.Println("warning: approved with trip numbers still missing")
		}
		fmt.Printf("approved %d order(s), %d issue(s) remaining\n", len(approved), len(session.Issues()))

		if verifyOutput == "" {
			return nil
		}
		f, err := os.Create(verifyOutput)
		if err != nil {
			return eris.Wrap(err, "create output file")
		}
		defer f.Close() //nolint:errcheck
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(approved)
	},
}

// applyCorrections replays each correction as a select/edit/save cycle so the
// same validation rules apply as in a live session. A correction that fails
// hard is reported and skipped; the rest still apply.
func applyCorrections(session *verify.Session, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrap(err, "read corrections file")
	}
	var file correctionsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return eris.Wrap(err, "parse corrections file")
	}

	for _, c := range file.Corrections {
		if err := session.Select(c.Order); err != nil {
			fmt.Printf("  skip %s: %v\n", c.Order, err)
			continue
		}
		if err := session.StartEdit(model.Field(c.Field)); err != nil {
			fmt.Printf("  skip %s.%s: %v\n", c.Order, c.Field, err)
			continue
		}
		session.Input(c.Value)

		status, msg, err := session.Save()
		if err != nil || status == model.ValidationError {
			fmt.Printf("  reject %s.%s=%q: %s\n", c.Order, c.Field, c.Value, msg)
			session.CancelEdit()
			continue
		}
		if status == model.ValidationWarning {
			fmt.Printf("  applied %s.%s=%q (warning: %s)\n", c.Order, c.Field, c.Value, msg)
		} else {
			fmt.Printf("  applied %s.%s=%q\n", c.Order, c.Field, c.Value)
		}
		zap.L().Debug("correction applied",
			zap.String("order", c.Order),
			zap.String("field", c.Field),
		)
	}
	return nil
}

func init() {
	verifyCmd.Flags().StringVar(&verifyCorrections, "corrections", "", "YAML file of corrections to apply")
	verifyCmd.Flags().StringVar(&verifyOutput, "output", "", "write approved orders as JSON to this file")
	rootCmd.AddCommand(verifyCmd)
}
