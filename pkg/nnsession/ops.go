package nnsession

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/psichix/opennn-go/pkg/nnwire"
)

// Network kinds accepted by the create operation.
const (
	EntityPerceptron = "perceptron"
	EntityLSTM       = "lstm"
	EntityLiquid     = "liquid"
	EntityTrainer    = "trainer"
	EntityNetwork    = "network"
)

func (s *Session) create(ctx context.Context, entity string, config []int) (*nnwire.Response, error) {
	if config == nil {
		config = []int{}
	}
	return s.Send(ctx, nnwire.Request{
		nnwire.FieldType: nnwire.TypeCreate,
		"entity":         entity,
		"config":         config,
	})
}

// CreatePerceptron creates a perceptron with the given layer sizes. The new
// network's id is in the response's "id" field.
func (s *Session) CreatePerceptron(ctx context.Context, layers ...int) (*nnwire.Response, error) {
	return s.create(ctx, EntityPerceptron, layers)
}

// CreateLSTM creates an LSTM network with the given layer sizes.
func (s *Session) CreateLSTM(ctx context.Context, layers ...int) (*nnwire.Response, error) {
	return s.create(ctx, EntityLSTM, layers)
}

// CreateLiquid creates a liquid state machine from config.
func (s *Session) CreateLiquid(ctx context.Context, config ...int) (*nnwire.Response, error) {
	return s.create(ctx, EntityLiquid, config)
}

// CreateTrainer creates a trainer bound to network.
func (s *Session) CreateTrainer(ctx context.Context, network string) (*nnwire.Response, error) {
	return s.Send(ctx, nnwire.Request{
		nnwire.FieldType: nnwire.TypeCreate,
		"entity":         EntityTrainer,
		"network":        network,
	})
}

// DestroyNetwork removes the network with the given id.
func (s *Session) DestroyNetwork(ctx context.Context, id string) (*nnwire.Response, error) {
	return s.destroy(ctx, EntityNetwork, id)
}

// DestroyTrainer removes the trainer with the given id.
func (s *Session) DestroyTrainer(ctx context.Context, id string) (*nnwire.Response, error) {
	return s.destroy(ctx, EntityTrainer, id)
}

func (s *Session) destroy(ctx context.Context, entity, id string) (*nnwire.Response, error) {
	return s.Send(ctx, nnwire.Request{
		nnwire.FieldType: nnwire.TypeDestroy,
		"entity":         entity,
		nnwire.FieldID:   id,
	})
}

// Train runs trainer over set. cfg and rng are optional.
func (s *Session) Train(ctx context.Context, trainer string, set []nnwire.Sample, cfg *nnwire.TrainConfig, rng *nnwire.Range) (*nnwire.Response, error) {
	return s.Send(ctx, nnwire.Request{
		nnwire.FieldType: nnwire.TypeTrain,
		"trainer":        trainer,
		"set":            set,
		"config":         cfg,
		"range":          rng,
	})
}

// Activate feeds one input vector through network. The output is in the
// response's "result" field.
func (s *Session) Activate(ctx context.Context, network string, input []float64, rng *nnwire.Range) (*nnwire.Response, error) {
	return s.Send(ctx, nnwire.Request{
		nnwire.FieldType: nnwire.TypeActivate,
		"network":        network,
		"set":            input,
		"range":          rng,
	})
}

// ActivateBatch sends one activate request per input concurrently and returns
// the responses in input order. It returns the first error as soon as any
// request fails; the other requests are left to settle on their own.
func (s *Session) ActivateBatch(ctx context.Context, network string, inputs [][]float64, rng *nnwire.Range) ([]*nnwire.Response, error) {
	results := make([]*nnwire.Response, len(inputs))
	failed := make(chan error, 1)
	var g errgroup.Group
	for i, input := range inputs {
		g.Go(func() error {
			resp, err := s.Activate(ctx, network, input, rng)
			if err != nil {
				select {
				case failed <- err:
				default:
				}
				return err
			}
			results[i] = resp
			return nil
		})
	}

	finished := make(chan error, 1)
	go func() { finished <- g.Wait() }()
	select {
	case err := <-failed:
		return nil, err
	case err := <-finished:
		if err != nil {
			return nil, err
		}
		return results, nil
	}
}

// Save serialises network, or every network when network is empty.
func (s *Session) Save(ctx context.Context, network string) (*nnwire.Response, error) {
	req := nnwire.Request{nnwire.FieldType: nnwire.TypeSave}
	if network != "" {
		req["network"] = network
	}
	return s.Send(ctx, req)
}

// Load restores data produced by Save, optionally into an existing network.
func (s *Session) Load(ctx context.Context, data any, network string) (*nnwire.Response, error) {
	req := nnwire.Request{
		nnwire.FieldType: nnwire.TypeLoad,
		"data":           data,
	}
	if network != "" {
		req["network"] = network
	}
	return s.Send(ctx, req)
}

// ClearNetworks removes every network.
func (s *Session) ClearNetworks(ctx context.Context) (*nnwire.Response, error) {
	return s.Send(ctx, nnwire.Request{nnwire.FieldType: nnwire.TypeClearNetworks})
}

// ClearTrainers removes every trainer.
func (s *Session) ClearTrainers(ctx context.Context) (*nnwire.Response, error) {
	return s.Send(ctx, nnwire.Request{nnwire.FieldType: nnwire.TypeClearTrainers})
}

// Clear removes every network and trainer.
func (s *Session) Clear(ctx context.Context) (*nnwire.Response, error) {
	return s.Send(ctx, nnwire.Request{nnwire.FieldType: nnwire.TypeClear})
}

// List returns the ids of the server's networks and trainers.
func (s *Session) List(ctx context.Context) (*nnwire.Response, error) {
	return s.Send(ctx, nnwire.Request{nnwire.FieldType: nnwire.TypeList})
}
