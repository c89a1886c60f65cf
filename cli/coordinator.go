package cli

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/absmach/fedavg"
	"github.com/absmach/fedavg/pkg/model"
	"github.com/absmach/fedavg/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	fsdk sdk.SDK
	cfg  = fedavg.DefaultConfig()
)

func SetSDK(s sdk.SDK) {
	fsdk = s
}

func SetConfig(c fedavg.Config) {
	cfg = c
}

type modelView struct {
	Round uint64          `json:"round"`
	Shape string          `json:"shape"`
	Model json.RawMessage `json:"model"`
}

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Coordinator status",
		Long:  `Show the current round, registered participants, pending updates and losses.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			status, err := fsdk.Status()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, status)
		},
	}
}

func NewModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Global model",
		Long:  `Show the current global model and the round it belongs to.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			gm, err := fsdk.CurrentModel()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			doc, err := model.Encode(gm.Model)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, modelView{Round: gm.Round, Shape: gm.Model.Shape().String(), Model: doc})
		},
	}
}

func NewRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <participant_id> <sample_count>",
		Short: "Register participant",
		Long: `Register a participant, or update its sample count.

Examples:
  fedavg-cli register worker-1 1000`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			samples, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			p, err := fsdk.Register(args[0], samples)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, p)
		},
	}
}

func NewSubmitCmd() *cobra.Command {
	var (
		loss    float64
		useCBOR bool
	)

	cmd := &cobra.Command{
		Use:   "submit <participant_id> <round> <model_file>",
		Short: "Submit update",
		Long: `Submit a locally trained model read from a JSON or CBOR file.

Examples:
  fedavg-cli submit worker-1 3 ./model.json --loss 0.042`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 3 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			round, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			data, err := os.ReadFile(args[2])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			m, err := model.Decode(data)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			update := sdk.Update{ParticipantID: args[0], Round: round, Model: m}
			if cmd.Flags().Changed("loss") {
				update.Loss = &loss
			}

			submit := fsdk.SubmitUpdate
			if useCBOR {
				submit = fsdk.SubmitUpdateCBOR
			}
			res, err := submit(update)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, res)
		},
	}

	cmd.Flags().Float64Var(&loss, "loss", 0, "Training loss reported with the update")
	cmd.Flags().BoolVar(&useCBOR, "cbor", false, "Submit the update as CBOR")

	return cmd
}
