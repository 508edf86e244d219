package harvest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/store"
)

// ResolveFlag closes a registration flag as resolved or abandoned. Resolving
// an already-closed flag is a no-op: the original resolution timestamp and
// notes are preserved.
func ResolveFlag(ctx context.Context, st store.Store, flagID string, outcome model.FlagStatus, notes string) (*model.RegistrationFlag, error) {
	if outcome != model.FlagResolved && outcome != model.FlagAbandoned {
		return nil, eris.Errorf("harvest: invalid flag outcome %q", outcome)
	}

	flag, err := st.GetFlag(ctx, flagID)
	if err != nil {
		return nil, err
	}
	if flag == nil {
		return nil, eris.Errorf("harvest: flag %s not found", flagID)
	}

	if flag.Status != model.FlagPending {
		zap.L().Debug("flag already closed",
			zap.String("flag", flagID),
			zap.String("status", string(flag.Status)),
		)
		return flag, nil
	}

	now := time.Now().UTC()
	flag.Status = outcome
	flag.ResolutionNotes = notes
	flag.ResolvedAt = &now

	if err := st.SaveFlag(ctx, flag); err != nil {
		return nil, err
	}

	zap.L().Info("flag resolved",
		zap.String("flag", flagID),
		zap.String("site", flag.SiteIdentity),
		zap.String("outcome", string(outcome)),
	)
	return flag, nil
}
