package excel

// FileConfig selects the file a DataReader loads
type FileConfig struct {
	FilePath string `json:"file" mapstructure:"file"`
	// Sheet names the XLSX sheet; empty reads the first sheet
	Sheet string `json:"sheet" mapstructure:"sheet"`
}
