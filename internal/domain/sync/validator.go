package sync

import (
	"fmt"
	"unicode"
)

const (
	MinSerialLen = 3
	MaxSerialLen = 64
)

// ValidateSerial проверяет серийный номер приёмника до обращения к хранилищу
func ValidateSerial(serial string) error {
	if len(serial) < MinSerialLen {
		return fmt.Errorf("serial number must be at least %d characters", MinSerialLen)
	}

	if len(serial) > MaxSerialLen {
		return fmt.Errorf("serial number must be at most %d characters", MaxSerialLen)
	}

	for _, r := range serial {
		if r > unicode.MaxASCII || (!unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-') {
			return fmt.Errorf("serial number can only contain ASCII letters, digits, '_', '-'")
		}
	}

	return nil
}
