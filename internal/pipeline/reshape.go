package pipeline

// FeatureRow is one fixed-width feature vector.
type FeatureRow []float32

// Reshape splits flat into rows of itemsPerRow values. All rows have
// itemsPerRow values except possibly the last. Rows share flat's storage.
func Reshape(flat []float32, itemsPerRow int) []FeatureRow {
	if itemsPerRow <= 0 || len(flat) == 0 {
		return nil
	}
	rows := make([]FeatureRow, 0, (len(flat)+itemsPerRow-1)/itemsPerRow)
	for start := 0; start < len(flat); start += itemsPerRow {
		end := min(start+itemsPerRow, len(flat))
		rows = append(rows, FeatureRow(flat[start:end:end]))
	}
	return rows
}
