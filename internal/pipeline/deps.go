// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"

	"github.com/pdiddy/paperwatch/internal/digest"
	"github.com/pdiddy/paperwatch/internal/history"
	"github.com/pdiddy/paperwatch/internal/library"
	"github.com/pdiddy/paperwatch/internal/score"
	"github.com/pdiddy/paperwatch/internal/search"
	"github.com/pdiddy/paperwatch/pkg/types"
)

// NewDeps wires the production collaborators for cfg. The caller closes
// the returned history store.
func NewDeps(cfg types.RunConfig) (Deps, error) {
	backends, err := search.NewBackends(cfg.Search)
	if err != nil {
		return Deps{}, fail(StageConfig, err)
	}
	provider, err := score.NewProvider(cfg.LLM)
	if err != nil {
		return Deps{}, fail(StageConfig, err)
	}
	store, err := history.New(cfg.History)
	if err != nil {
		return Deps{}, fail(StageHistory, fmt.Errorf("opening history: %w", err))
	}
	return Deps{
		Library:  library.NewClient(cfg.Library),
		Backends: backends,
		History:  store,
		Provider: provider,
		Sender:   digest.NewSMTPSender(cfg.Mail),
	}, nil
}
