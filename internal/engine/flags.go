package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/policy"
	"github.com/sells-group/procure-cli/internal/store"
)

// flagUpserter enforces at most one pending flag per (site, family). The
// check-then-write is serialized per key so concurrent attempts against the
// same site cannot race a duplicate in.
type flagUpserter struct {
	store  store.Store
	policy policy.Policy

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFlagUpserter(st store.Store, pol policy.Policy) *flagUpserter {
	return &flagUpserter{store: st, policy: pol, locks: make(map[string]*sync.Mutex)}
}

// upsert creates a pending flag or refreshes the existing one. Errors are
// logged, not returned: a failed flag write must not change the attempt
// outcome.
func (f *flagUpserter) upsert(ctx context.Context, siteIdentity string, family model.PortalFamily, reason model.FlagReason, description string) *model.RegistrationFlag {
	unlock := f.lock(siteIdentity + "|" + string(family))
	defer unlock()

	existing, err := f.store.GetPendingFlag(ctx, siteIdentity, family)
	if err != nil {
		zap.L().Error("lookup pending flag", zap.String("site", siteIdentity), zap.Error(err))
		return nil
	}

	priority := f.policy.Priority(reason, siteIdentity, family)
	hours := f.policy.Hours(reason)

	flag := existing
	if flag == nil {
		flag = &model.RegistrationFlag{
			SiteIdentity: siteIdentity,
			Family:       family,
			Status:       model.FlagPending,
		}
	}
	flag.Reason = reason
	flag.Description = description
	flag.Priority = priority
	flag.EstimatedHours = hours

	if err := f.store.SaveFlag(ctx, flag); err != nil {
		zap.L().Error("save flag", zap.String("site", siteIdentity), zap.Error(err))
		return nil
	}

	zap.L().Info("registration flag recorded",
		zap.String("site", siteIdentity),
		zap.String("family", string(family)),
		zap.String("reason", string(reason)),
		zap.Int("priority", flag.Priority),
		zap.Bool("updated_existing", existing != nil),
	)
	return flag
}

func (f *flagUpserter) lock(key string) func() {
	f.mu.Lock()
	m, ok := f.locks[key]
	if !ok {
		m = &sync.Mutex{}
		f.locks[key] = m
	}
	f.mu.Unlock()

	m.Lock()
	return m.Unlock
}
