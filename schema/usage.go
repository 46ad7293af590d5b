package schema

// TokenDetails breaks input/output token counts down by category
// (spec.md §3.4). Extra carries provider-specific categories the named
// fields don't cover.
type TokenDetails struct {
	Audio         int64            `json:"audio,omitempty"`
	CacheCreation int64            `json:"cache_creation,omitempty"`
	CacheRead     int64            `json:"cache_read,omitempty"`
	Reasoning     int64            `json:"reasoning,omitempty"`
	Extra         map[string]int64 `json:"extra,omitempty"`
}

// UsageMetadata is a token-accounting record with detail breakdowns
// (spec.md §3.4). Addition is commutative/associative; Subtract floors
// every field at zero (spec.md §8 invariants 4-5).
type UsageMetadata struct {
	InputTokens        int64         `json:"input_tokens"`
	OutputTokens       int64         `json:"output_tokens"`
	TotalTokens        int64         `json:"total_tokens"`
	InputTokenDetails  *TokenDetails `json:"input_token_details,omitempty"`
	OutputTokenDetails *TokenDetails `json:"output_token_details,omitempty"`
}

// NewUsageMetadata builds a UsageMetadata with TotalTokens computed as the
// sum of input and output.
func NewUsageMetadata(input, output int64) *UsageMetadata {
	return &UsageMetadata{InputTokens: input, OutputTokens: output, TotalTokens: input + output}
}

func addTokenDetails(a, b *TokenDetails) *TokenDetails {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := &TokenDetails{
		Audio:         a.Audio + b.Audio,
		CacheCreation: a.CacheCreation + b.CacheCreation,
		CacheRead:     a.CacheRead + b.CacheRead,
		Reasoning:     a.Reasoning + b.Reasoning,
	}
	if len(a.Extra) > 0 || len(b.Extra) > 0 {
		out.Extra = make(map[string]int64, len(a.Extra)+len(b.Extra))
		for k, v := range a.Extra {
			out.Extra[k] += v
		}
		for k, v := range b.Extra {
			out.Extra[k] += v
		}
	}
	return out
}

// AddUsage sums left and right field-wise. AddUsage(nil, u) == u and
// AddUsage(u, nil) == u, satisfying the "None + x = x" invariant.
func AddUsage(left, right *UsageMetadata) *UsageMetadata {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	return &UsageMetadata{
		InputTokens:        left.InputTokens + right.InputTokens,
		OutputTokens:       left.OutputTokens + right.OutputTokens,
		TotalTokens:        left.TotalTokens + right.TotalTokens,
		InputTokenDetails:  addTokenDetails(left.InputTokenDetails, right.InputTokenDetails),
		OutputTokenDetails: addTokenDetails(left.OutputTokenDetails, right.OutputTokenDetails),
	}
}

func floorSub(a, b int64) int64 {
	d := a - b
	if d < 0 {
		return 0
	}
	return d
}

func subTokenDetails(a, b *TokenDetails) *TokenDetails {
	if a == nil && b == nil {
		return nil
	}
	var av, bv TokenDetails
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	out := &TokenDetails{
		Audio:         floorSub(av.Audio, bv.Audio),
		CacheCreation: floorSub(av.CacheCreation, bv.CacheCreation),
		CacheRead:     floorSub(av.CacheRead, bv.CacheRead),
		Reasoning:     floorSub(av.Reasoning, bv.Reasoning),
	}
	if len(av.Extra) > 0 || len(bv.Extra) > 0 {
		out.Extra = make(map[string]int64, len(av.Extra))
		for k, v := range av.Extra {
			out.Extra[k] = floorSub(v, bv.Extra[k])
		}
	}
	return out
}

// SubtractUsage subtracts right from left, field-wise floored at zero
// (spec.md §3.4, §8 invariant 5). SubtractUsage(u, u).TotalTokens == 0.
func SubtractUsage(left, right *UsageMetadata) *UsageMetadata {
	if left == nil {
		left = &UsageMetadata{}
	}
	if right == nil {
		right = &UsageMetadata{}
	}
	return &UsageMetadata{
		InputTokens:        floorSub(left.InputTokens, right.InputTokens),
		OutputTokens:       floorSub(left.OutputTokens, right.OutputTokens),
		TotalTokens:        floorSub(left.TotalTokens, right.TotalTokens),
		InputTokenDetails:  subTokenDetails(left.InputTokenDetails, right.InputTokenDetails),
		OutputTokenDetails: subTokenDetails(left.OutputTokenDetails, right.OutputTokenDetails),
	}
}
