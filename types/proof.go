package types

import "encoding/json"

// Proof is an attestation returned by the proof provider once the solver
// completes the verification flow.
type Proof struct {
	Identifier string     `json:"identifier" validate:"required"`
	ClaimData  ClaimData  `json:"claimData" validate:"required"`
	Signatures []string   `json:"signatures" validate:"required,min=1,dive,required"`
	Witnesses  []Witness  `json:"witnesses"`
	PublicData PublicData `json:"publicData"`
}

type ClaimData struct {
	Provider   string `json:"provider" validate:"required"`
	Parameters string `json:"parameters"`
	Owner      string `json:"owner" validate:"required"`
	TimestampS uint64 `json:"timestampS"`
	Context    string `json:"context"`
	Identifier string `json:"identifier" validate:"required"`
	Epoch      uint64 `json:"epoch"`
}

type Witness struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PublicData holds the order facts the provider extracted for the solver.
// Values arrive as loosely formatted strings.
type PublicData struct {
	ItemLink        string `json:"itemLink"`
	ShippingAddress string `json:"shippingAddress"`
	DeliveryDate    string `json:"deliveryDate"`
	FinalPrice      string `json:"finalPrice"`
}

// UnmarshalJSON tolerates a publicData value encoded as a JSON string.
func (p *PublicData) UnmarshalJSON(data []byte) error {
	type plain PublicData
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		data = []byte(raw)
	}
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = PublicData(v)
	return nil
}

// VerificationResult is the outcome of checking a proof's attestations.
type VerificationResult struct {
	Valid   bool     `json:"valid"`
	Reason  string   `json:"reason,omitempty"`
	Signers []string `json:"signers,omitempty"`
}
