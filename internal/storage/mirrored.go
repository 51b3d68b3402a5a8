package storage

import (
	"context"

	"github.com/igwedaniel/dripper/internal/types"
	"github.com/sirupsen/logrus"
)

// MirroredLedger writes to a primary ledger and then copies each entry to
// best-effort mirrors. Only a primary failure is returned.
type MirroredLedger struct {
	primary Ledger
	mirrors []Ledger
	logger  *logrus.Logger
}

func NewMirroredLedger(primary Ledger, logger *logrus.Logger, mirrors ...Ledger) *MirroredLedger {
	return &MirroredLedger{primary: primary, mirrors: mirrors, logger: logger}
}

func (m *MirroredLedger) Append(ctx context.Context, cred types.WalletCredential) error {
	if err := m.primary.Append(ctx, cred); err != nil {
		return err
	}
	for _, mirror := range m.mirrors {
		if err := mirror.Append(ctx, cred); err != nil {
			m.logger.Warnf("Failed to mirror wallet %s: %v", cred.Address.Hex(), err)
		}
	}
	return nil
}

func (m *MirroredLedger) Close() error {
	var firstErr error
	for _, l := range append([]Ledger{m.primary}, m.mirrors...) {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
