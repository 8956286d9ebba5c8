package types

// redactedPlaceholder replaces secret values in logs and serialized output.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds credentials such as the job scheduler bearer key or the
// database URL. String and MarshalJSON return a placeholder so the value never
// reaches logs or config dumps; call Unmask when the raw value is required.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret. Restrict its use to
// building Authorization headers and driver connection strings.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsEmpty reports whether no secret value was provided.
func (s SecretString) IsEmpty() bool {
	return s == ""
}
