package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.mau.fi/util/ptr"

	"github.com/psichix/opennn-go/pkg/nnsession"
	"github.com/psichix/opennn-go/pkg/nnwire"
)

const defaultConfigPath = "nnctl.yaml"

type app struct {
	configPath     string
	address        string
	requestTimeout time.Duration
	logLevel       string

	cfg Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "nnctl",
		Short:         "nnctl talks to an OpenNN neural network server",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", defaultConfigPath, "Path to the YAML config file")
	flags.StringVarP(&a.address, "address", "a", "", "Server address (overrides the config file)")
	flags.DurationVar(&a.requestTimeout, "request-timeout", 0, "Per-request timeout (overrides the config file)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		a.listCmd(),
		a.clearCmd(),
		a.createCmd(),
		a.destroyCmd(),
		a.trainCmd(),
		a.activateCmd(),
		a.saveCmd(),
		a.loadCmd(),
		a.sendCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if a.address != "" {
		cfg.Address = a.address
	}
	if a.requestTimeout > 0 {
		cfg.RequestTimeout = a.requestTimeout
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg
	a.log = newLogger(cmd.ErrOrStderr(), cfg.Logging)
	return nil
}

type operation func(ctx context.Context, s *nnsession.Session) (any, error)

// run opens a session, performs op and prints its result as JSON.
func (a *app) run(cmd *cobra.Command, op operation) error {
	ctx := a.log.WithContext(cmd.Context())
	s, err := connect(ctx, a.cfg, &a.log)
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := op(ctx, s)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), out)
}

func printResult(w io.Writer, out any) error {
	var raw []byte
	switch v := out.(type) {
	case *nnwire.Response:
		raw = v.Raw
	case []*nnwire.Response:
		items := make([]json.RawMessage, len(v))
		for i, resp := range v {
			items[i] = resp.Raw
		}
		var err error
		if raw, err = json.Marshal(items); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unexpected result type %T", out)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List networks and trainers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, s *nnsession.Session) (any, error) {
				return s.List(ctx)
			})
		},
	}
}

func (a *app) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "clear [networks|trainers|all]",
		Short:     "Remove networks, trainers, or both",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"networks", "trainers", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			what := "all"
			if len(args) == 1 {
				what = args[0]
			}
			return a.run(cmd, func(ctx context.Context, s *nnsession.Session) (any, error) {
				switch what {
				case "networks":
					return s.ClearNetworks(ctx)
				case "trainers":
					return s.ClearTrainers(ctx)
				case "all":
					return s.Clear(ctx)
				default:
					return nil, fmt.Errorf("unknown clear target %q", what)
				}
			})
		},
	}
}

func (a *app) createCmd() *cobra.Command {
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a network or trainer",
	}
	network := func(use, short string, fn func(*nnsession.Session, context.Context, ...int) (*nnwire.Response, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <sizes...>",
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				sizes, err := parseInts(args)
				if err != nil {
					return err
				}
				return a.run(cmd, func(ctx context.Context, s *nnsession.Session) (any, error) {
					return fn(s, ctx, sizes...)
				})
			},
		}
	}
	create.AddCommand(
		network("perceptron", "Create a perceptron from layer sizes", (*nnsession.Session).CreatePerceptron),
		network("lstm", "Create an LSTM network from layer sizes", (*nnsession.Session).CreateLSTM),
		network("liquid", "Create a liquid state machine", (*nnsession.Session).CreateLiquid),
		&cobra.Command{
			Use:   "trainer <network>",
			Short: "Create a trainer for a network",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(ctx context.Context, s *nnsession.Session) (any, error) {
					return s.CreateTrainer(ctx, args[0])
				})
			},
		},
	)
	return create
}

func (a *app) destroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "destroy <network|trainer> <id>",
		Short:     "Destroy a network or trainer",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"network", "trainer"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id := args[0], args[1]
			return a.run(cmd, func(ctx context.Context, s *nnsession.Session) (any, error) {
				switch kind {
				case nnsession.EntityNetwork:
					return s.DestroyNetwork(ctx, id)
				case nnsession.EntityTrainer:
					return s.DestroyTrainer(ctx, id)
				default:
					return nil, fmt.Errorf("unknown entity %q", kind)
				}
			})
		},
	}
}

func (a *app) trainCmd() *cobra.Command {
	var configPath, rangeFlag string
	var shuffle bool
	cmd := &cobra.Command{
		Use:   "train <trainer> <set-file>",
		Short: "Train with samples from a JSON5 file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var set []nnwire.Sample
			if err := readJSON5(args[1], &set); err != nil {
				return err
			}
			var trainCfg *nnwire.TrainConfig
			var rng *nnwire.Range
			if configPath != "" {
				var err error
				if trainCfg, rng, err = readTrainOptions(configPath); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("shuffle") {
				if trainCfg == nil {
					trainCfg = &nnwire.TrainConfig{}
				}
				trainCfg.Shuffle = ptr.Ptr(shuffle)
			}
			if rangeFlag != "" {
				flagRange, err := parseRange(rangeFlag)
				if err != nil {
					return err
				}
				rng = flagRange
			}
			return a.run(cmd, func(ctx context.Context, s *nnsession.Session) (any, error) {
				return s.Train(ctx, args[0], set, trainCfg, rng)
			})
		},
	}
	cmd.Flags().StringVar(&configPath, "train-config", "", "JSON5 file with trainer options and an optional range")
	cmd.Flags().StringVar(&rangeFlag, "range", "", "Output range as from,to; overrides the file")
	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "Shuffle the set between iterations")
	return cmd
}

func (a *app) activateCmd() *cobra.Command {
	var rangeFlag string
	cmd := &cobra.Command{
		Use:   "activate <network> <inputs-file>",
		Short: "Activate a network with every input vector in a JSON5 file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var inputs [][]float64
			if err := readJSON5(args[1], &inputs); err != nil {
				return err
			}
			rng, err := parseRange(rangeFlag)
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, s *nnsession.Session) (any, error) {
				return s.ActivateBatch(ctx, args[0], inputs, rng)
			})
		},
	}
	cmd.Flags().StringVar(&rangeFlag, "range", "", "Output range as from,to")
	return cmd
}

func (a *app) saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save [network]",
		Short: "Serialise one network, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			network := ""
			if len(args) == 1 {
				network = args[0]
			}
			return a.run(cmd, func(ctx context.Context, s *nnsession.Session) (any, error) {
				return s.Save(ctx, network)
			})
		},
	}
}

func (a *app) loadCmd() *cobra.Command {
	var network string
	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Load networks produced by save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data any
			if err := readJSON5(args[0], &data); err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, s *nnsession.Session) (any, error) {
				return s.Load(ctx, data, network)
			})
		},
	}
	cmd.Flags().StringVar(&network, "network", "", "Load into an existing network")
	return cmd
}

func (a *app) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <descriptor-file>",
		Short: "Send a raw operation descriptor from a JSON5 file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readDescriptor(args[0])
			if err != nil {
				return err
			}
			if err := req.Validate(); err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, s *nnsession.Session) (any, error) {
				return s.Send(ctx, req)
			})
		},
	}
}
