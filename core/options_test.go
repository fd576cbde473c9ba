package booking

import (
	"testing"
	"time"

	"github.com/hiyadrive/hiya-core/core/messages"
)

func TestOptionsOverrideConfig(t *testing.T) {
	ports := newTestPorts()
	engine := ports.engine(t,
		WithMaxCalendarRetries(5),
		WithStageRetryBudget(4),
		WithSearchExpansionBudget(3),
		WithNegotiationLimits(6, 3*time.Minute),
		WithSilenceTimeout(7*time.Second),
		WithListenTimeout(2*time.Second),
	)

	cfg := engine.config
	if cfg.maxCalendarRetries != 5 || cfg.stageRetryBudget != 4 || cfg.searchExpansionBudget != 3 {
		t.Fatalf("expected retry budgets to be overridden, got %+v", cfg)
	}
	if cfg.turnCap != 6 || cfg.negotiationTimeout != 3*time.Minute {
		t.Fatalf("expected negotiation limits to be overridden, got %+v", cfg)
	}
	if cfg.silenceTimeout != 7*time.Second || cfg.listenTimeout != 2*time.Second {
		t.Fatalf("expected timeouts to be overridden, got %+v", cfg)
	}
}

func TestDefaultGeneratorIsDeterministic(t *testing.T) {
	ports := newTestPorts()
	engine := ports.engine(t)

	if _, ok := engine.generator.(messages.StaticGenerator); !ok {
		t.Fatalf("expected the fallback generator by default, got %T", engine.generator)
	}
}
