package record

import "github.com/sigurn/crc16"

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Checksum считает CRC-16/XMODEM, которым приёмник защищает заголовки и записи
func Checksum(b []byte) uint16 {
	return crc16.Checksum(b, crcTable)
}
