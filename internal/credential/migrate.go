package credential

import "fmt"

// Seal encrypts every plaintext value in place and reports how many changed.
// Idempotent: values that already have the "enc:" prefix are skipped.
func Seal(fields ...*string) (int, error) {
	n := 0
	for i, f := range fields {
		if f == nil || *f == "" || IsEncrypted(*f) {
			continue
		}
		ct, err := Encrypt(*f)
		if err != nil {
			return n, fmt.Errorf("seal field %d: %w", i, err)
		}
		*f = ct
		n++
	}
	return n, nil
}

// Open decrypts every value in place.
func Open(fields ...*string) error {
	for i, f := range fields {
		if f == nil {
			continue
		}
		pt, err := Decrypt(*f)
		if err != nil {
			return fmt.Errorf("open field %d: %w", i, err)
		}
		*f = pt
	}
	return nil
}
