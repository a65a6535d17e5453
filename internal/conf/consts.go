package conf

// Feature module types
const (
	ModelTypeBuiltin = "builtin"
	ModelTypeTFLite  = "tflite"
)

// Output formats
const (
	OutputFormatCSV  = "csv"
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"
)
