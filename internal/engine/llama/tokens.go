package llama

import "inferdemo/internal/tensor"

// firstTokens returns the data of the first int64 tensor as token ids. A
// shape-only tensor yields zeros of its size.
func firstTokens(in tensor.List) []int {
	for _, t := range in {
		if t == nil || t.DType != tensor.Int64 {
			continue
		}
		ids := make([]int, t.Shape.Size())
		for i := range ids {
			if i < len(t.Ints) {
				ids[i] = int(t.Ints[i])
			}
		}
		return ids
	}
	return nil
}
