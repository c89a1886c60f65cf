package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"
)

func logJSONCmd(cmd cobra.Command, iList ...any) {
	for _, i := range iList {
		m, err := json.Marshal(i)
		if err != nil {
			logErrorCmd(cmd, err)

			return
		}

		pj, err := prettyjson.Format(m)
		if err != nil {
			logErrorCmd(cmd, err)

			return
		}

		cmd.Print(string(pj) + "\n\n")
	}
}

func logUsageCmd(cmd cobra.Command, u string) {
	cmd.Print(color.YellowString(fmt.Sprintf("\nusage: %s\n\n", u)))
}

func logErrorCmd(cmd cobra.Command, err error) {
	boldRed := color.New(color.FgRed, color.Bold)
	boldRed.Fprint(cmd.ErrOrStderr(), "\nerror: ")

	cmd.PrintErr(color.RedString(fmt.Sprintf("%s\n\n", err.Error())))
}

func logSuccessCmd(cmd cobra.Command, msg string) {
	cmd.Print(color.GreenString(fmt.Sprintf("\n%s\n\n", msg)))
}
