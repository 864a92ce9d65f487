package verification

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"github.com/storerunner/storefront/logger"
	"github.com/storerunner/storefront/metrics"
	"github.com/storerunner/storefront/types"
	"github.com/storerunner/storefront/utils"
)

// Verifier checks proof attestations.
type Verifier interface {
	Verify(ctx context.Context, proof *types.Proof) (*types.VerificationResult, error)
}

// VerificationService accepts proofs signed by a fixed set of attestors.
type VerificationService struct {
	attestors map[common.Address]struct{}
	logger    logger.Logger
	metrics   metrics.Recorder
}

type Option func(*VerificationService)

func WithLogger(l logger.Logger) Option {
	return func(s *VerificationService) { s.logger = logger.OrNoop(l) }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *VerificationService) { s.metrics = metrics.OrNoop(r) }
}

// NewVerificationService trusts the given attestor addresses. Invalid
// addresses are rejected.
func NewVerificationService(attestors []string, opts ...Option) (*VerificationService, error) {
	bad := lo.Filter(attestors, func(a string, _ int) bool { return !utils.ValidateAddress(a) })
	if len(bad) > 0 {
		return nil, types.NewError(types.KindValidation, fmt.Sprintf("invalid attestor addresses: %s", strings.Join(bad, ", ")), nil)
	}

	trusted := lo.SliceToMap(attestors, func(a string) (common.Address, struct{}) {
		return common.HexToAddress(a), struct{}{}
	})

	s := &VerificationService{
		attestors: trusted,
		logger:    logger.NoopLogger{},
		metrics:   metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Verify reports whether proof is well formed, its claim identifier matches
// its claim info, and every signature comes from a trusted attestor.
// A rejected proof is a result, not an error.
func (s *VerificationService) Verify(ctx context.Context, proof *types.Proof) (*types.VerificationResult, error) {
	start := time.Now()
	result := s.verify(proof)

	outcome := metrics.OutcomeSuccess
	if !result.Valid {
		outcome = metrics.OutcomeFailure
		fields := map[string]any{"reason": result.Reason}
		if proof != nil {
			fields["identifier"] = proof.Identifier
		}
		s.logger.Warn("proof rejected", fields)
	}
	labels := map[string]string{"outcome": outcome}
	s.metrics.IncCounter("proof.verify", labels)
	s.metrics.ObserveLatency("proof.verify", time.Since(start), labels)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *VerificationService) verify(proof *types.Proof) *types.VerificationResult {
	if proof == nil {
		return invalid("proof is empty")
	}
	if err := utils.Validate(proof); err != nil {
		return invalid(fmt.Sprintf("invalid proof: %v", err))
	}
	if len(s.attestors) == 0 {
		return invalid("no trusted attestors configured")
	}

	claim := proof.ClaimData
	expected := ClaimIdentifier(claim.Provider, claim.Parameters, claim.Context)
	if !strings.EqualFold(expected, claim.Identifier) || !strings.EqualFold(expected, proof.Identifier) {
		return invalid("claim identifier does not match claim info")
	}

	message := SignedClaimMessage(claim)
	signers := make([]string, 0, len(proof.Signatures))
	for i, sig := range proof.Signatures {
		addr, err := utils.RecoverPersonalSigner(message, sig)
		if err != nil {
			return invalid(fmt.Sprintf("signature %d: %v", i, err))
		}
		if _, ok := s.attestors[addr]; !ok {
			return invalid(fmt.Sprintf("signature %d from untrusted attestor %s", i, addr.Hex()))
		}
		signers = append(signers, addr.Hex())
	}

	return &types.VerificationResult{Valid: true, Signers: lo.Uniq(signers)}
}

// ClaimIdentifier is keccak256 of the newline-joined provider, parameters
// and context.
func ClaimIdentifier(provider, parameters, context string) string {
	return utils.ContentHash(provider + "\n" + parameters + "\n" + context).Hex()
}

// SignedClaimMessage is the text attestors sign for a claim.
func SignedClaimMessage(c types.ClaimData) string {
	return strings.Join([]string{
		strings.ToLower(c.Identifier),
		strings.ToLower(c.Owner),
		strconv.FormatUint(c.TimestampS, 10),
		strconv.FormatUint(c.Epoch, 10),
	}, "\n")
}

// NormalizeFields cleans provider output: the link is trimmed, the other
// fields have whitespace runs collapsed and are trimmed.
func NormalizeFields(p types.PublicData) types.PublicData {
	return types.PublicData{
		ItemLink:        strings.TrimSpace(p.ItemLink),
		ShippingAddress: types.CollapseSpaces(p.ShippingAddress),
		DeliveryDate:    types.CollapseSpaces(p.DeliveryDate),
		FinalPrice:      types.CollapseSpaces(p.FinalPrice),
	}
}

func invalid(reason string) *types.VerificationResult {
	return &types.VerificationResult{Valid: false, Reason: reason}
}
