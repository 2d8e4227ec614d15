package secrets

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/systemstart/envsecrets/pkg/api"
)

// Store is the remote secret store Publisher writes to.
type Store interface {
	PublicKey(ctx context.Context, repository string) (api.PublicKey, error)
	PutSecret(ctx context.Context, repository, name string, secret api.SealedSecret) error
}

// redacted keeps secret values out of log output.
type redacted string

func (redacted) LogValue() slog.Value { return slog.StringValue("***") }

// Publisher seals variables and upserts them as repository secrets.
type Publisher struct {
	store Store
}

// NewPublisher creates a publisher writing to store.
func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Publish uploads vars one at a time, fetching the public key for each. It
// stops at the first failure; secrets already written stay written.
func (p *Publisher) Publish(ctx context.Context, repository string, vars []api.EnvVariable) error {
	for i, v := range vars {
		slog.Info("adding secret", "name", v.Name, "value", redacted(v.Value), "index", i+1, "total", len(vars))
		if err := p.publishOne(ctx, repository, v); err != nil {
			return fmt.Errorf("publishing %s: %w", v.Name, err)
		}
	}
	return nil
}

func (p *Publisher) publishOne(ctx context.Context, repository string, v api.EnvVariable) error {
	key, err := p.store.PublicKey(ctx, repository)
	if err != nil {
		return err
	}

	sealed, err := Seal(key, v.Value)
	if err != nil {
		return err
	}

	return p.store.PutSecret(ctx, repository, v.Name, sealed)
}
