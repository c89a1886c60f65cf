package cli

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/fedavg"
	"github.com/absmach/fedavg/participant"
	"github.com/absmach/fedavg/pkg/model"
	"github.com/absmach/fedavg/pkg/mqtt"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const mqttTimeout = 30 * time.Second

var namegen = namegenerator.NewGenerator()

func NewTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Run a participant",
		Long: `Run one participant on a synthetic local dataset until the coordinator
reaches the configured number of rounds.

Examples:
  fedavg-cli train --config participant.toml`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			id := cfg.Participant.ID
			if id == "" {
				id = namegen.Generate()
			}

			if err := runParticipants(cmd.Context(), *cmd, []string{id}); err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logSuccessCmd(*cmd, fmt.Sprintf("Participant %s finished training", id))
		},
	}
}

func NewSimulateCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate participants",
		Long: `Run several participants in one process, each with its own synthetic
dataset drawn from the same underlying linear function.

Examples:
  fedavg-cli simulate --participants 3`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 || count <= 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			ids := make([]string, 0, count)
			seen := make(map[string]struct{}, count)
			for len(ids) < count {
				id := namegen.Generate()
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
			if err := runParticipants(cmd.Context(), *cmd, ids); err != nil {
				logErrorCmd(*cmd, err)

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

	cmd.Flags().IntVar(&count, "participants", 3, "Number of simulated participants")

	return cmd
}

func runParticipants(ctx context.Context, cmd cobra.Command, ids []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

	pollInterval, err := fedavg.ParseDuration(cfg.Participant.PollInterval)
	if err != nil {
		return err
	}

	gm, err := fsdk.CurrentModel()
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(cfg.Participant.Seed, uint64(len(ids))))
	truth := randomModel(gm.Model.Shape(), rng)

	runners := make([]*participant.Runner, 0, len(ids))
	for i, id := range ids {
		samples := cfg.Participant.Samples + i*cfg.Participant.Samples/4
		features, labels, err := participant.SyntheticData(samples, truth, cfg.Participant.Noise, rand.New(rand.NewPCG(cfg.Participant.Seed, uint64(i)+1)))
		if err != nil {
			return err
		}
		trainer, err := participant.NewTrainer(features, labels)
		if err != nil {
			return err
		}
		// Register everyone before training starts so that no participant
		// completes a round on its own.
		if _, err := fsdk.Register(id, trainer.Samples()); err != nil {
			return err
		}

		r := participant.NewRunner(participant.Config{
			ParticipantID: id,
			Epochs:        cfg.Participant.Epochs,
			LearningRate:  cfg.Participant.LearningRate,
			Rounds:        cfg.Participant.Rounds,
			PollInterval:  pollInterval,
			UseCBOR:       cfg.Participant.UseCBOR,
		}, fsdk, trainer, logger.With(slog.String("participant_id", id)))

		if cfg.MQTT.Address != "" {
			pubsub, err := subscribe(ctx, r, id, logger)
			if err != nil {
				return err
			}
			defer pubsub.Disconnect(context.Background())
		}
		runners = append(runners, r)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	return g.Wait()
}

func subscribe(ctx context.Context, r *participant.Runner, id string, logger *slog.Logger) (mqtt.PubSub, error) {
	mqttCfg := mqtt.Config{
		Address:   cfg.MQTT.Address,
		QoS:       1,
		Timeout:   mqttTimeout,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		BaseTopic: cfg.MQTT.BaseTopic,
	}
	pubsub, err := mqtt.NewPubSub(mqttCfg, id, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	if err := r.Subscribe(ctx, pubsub, mqttCfg.Topic(mqtt.RoundsTopic)); err != nil {
		_ = pubsub.Disconnect(context.Background())

		return nil, fmt.Errorf("failed to subscribe to round notifications: %w", err)
	}

	return pubsub, nil
}

// randomModel draws the parameters of the function participants learn.
func randomModel(shape model.Shape, rng *rand.Rand) model.Model {
	m := model.Zeros(shape.Inputs, shape.Outputs)
	for i := range m.Weights {
		m.Weights[i] = float32(rng.Float64()*4 - 2)
	}
	for i := range m.Bias {
		m.Bias[i] = float32(rng.Float64()*2 - 1)
	}

	return m
}
