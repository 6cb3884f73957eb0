package invoice

import (
	"github.com/rs/zerolog"

	"github.com/warp/invoice-ledger/ledger"
)

// Deps are the collaborators shared by the workflows, the engine and the
// aggregator. Only Store is required.
type Deps struct {
	Store    Store
	Accounts ledger.Accounts
	Locker   StockLocker
	Cache    Cache
	Logger   zerolog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Accounts == (ledger.Accounts{}) {
		d.Accounts = ledger.DefaultAccounts()
	}
	if d.Locker == nil {
		d.Locker = NewKeyedMutex()
	}
	if d.Cache == nil {
		d.Cache = NopCache{}
	}
	return d
}

// abortEvent picks the level for a write that did not commit: error for
// store failures, debug for rejections raised inside the transaction.
func abortEvent(log zerolog.Logger, err error) *zerolog.Event {
	if ledger.KindOf(err) == ledger.KindPersistence {
		return log.Error()
	}
	return log.Debug()
}
