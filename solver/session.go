package solver

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/storerunner/storefront/types"
)

// Session is one solver's attempt to prove fulfilment of an intent.
type Session struct {
	mu sync.Mutex

	id         string
	intentID   *big.Int
	solver     common.Address
	requestURL string
	createdAt  time.Time
	wf         *Workflow

	fields       *types.PublicData
	txHash       string
	reason       string
	solverPayout *big.Int
}

// View is the JSON shape of a session.
type View struct {
	SessionID     string            `json:"sessionId"`
	IntentID      string            `json:"intentId"`
	SolverAddress string            `json:"solverAddress"`
	State         State             `json:"state"`
	RequestURL    string            `json:"requestUrl"`
	CreatedAt     time.Time         `json:"createdAt"`
	Fields        *types.PublicData `json:"fields,omitempty"`
	TxHash        string            `json:"txHash,omitempty"`
	SolverPayout  string            `json:"solverPayout,omitempty"`
	Error         string            `json:"error,omitempty"`
}

func (s *Session) view() *View {
	v := &View{
		SessionID:     s.id,
		IntentID:      s.intentID.String(),
		SolverAddress: s.solver.Hex(),
		State:         s.wf.Current(),
		RequestURL:    s.requestURL,
		CreatedAt:     s.createdAt,
		Fields:        s.fields,
		TxHash:        s.txHash,
		Error:         s.reason,
	}
	if s.solverPayout != nil {
		v.SolverPayout = s.solverPayout.String()
	}
	return v
}

// View returns a snapshot of the session.
func (s *Session) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}
