package card

import (
	"fmt"
)

// SelectMasterFile selects the root of the card file system.
func SelectMasterFile(s *Session) error {
	_, err := s.Transmit(selectMasterFileCommand())
	return err
}

// SelectDirectory selects a dedicated file (directory) below the current one.
func SelectDirectory(s *Session, id FileID) error {
	if _, err := s.Transmit(selectDirectoryCommand(id)); err != nil {
		return fmt.Errorf("select directory %s: %w", id, err)
	}
	return nil
}

// SelectFile selects an elementary file in the current directory.
func SelectFile(s *Session, id FileID) error {
	if _, err := s.Transmit(selectFileCommand(id)); err != nil {
		return fmt.Errorf("select file %s: %w", id, err)
	}
	return nil
}

// ReadRecords reads records 1..count of the selected record file.
// The first failure aborts the read and no records are returned.
func ReadRecords(s *Session, count int) ([][]byte, error) {
	if count < 1 || count > 254 {
		return nil, NewIndexOutOfRangeError(fmt.Sprintf("record count %d out of range", count))
	}

	records := make([][]byte, 0, count)
	for i := 1; i <= count; i++ {
		resp, err := s.Transmit(readRecordCommand(byte(i)))
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", i, err)
		}
		records = append(records, resp.Data)
	}
	return records, nil
}

// ReadPersonalDataRecords navigates MF / EEEE / 5044 and reads the 16 personal data records.
func ReadPersonalDataRecords(s *Session) ([][]byte, error) {
	if err := SelectMasterFile(s); err != nil {
		return nil, err
	}
	if err := SelectDirectory(s, FilePersonalDataDir); err != nil {
		return nil, err
	}
	if err := SelectFile(s, FilePersonalData); err != nil {
		return nil, err
	}
	return ReadRecords(s, PersonalDataRecordCount)
}

// ReadTransparentFile reads a transparent (binary) file from the card in chunks.
// When the file starts with a DER SEQUENCE header the read stops at the encoded length,
// otherwise it stops at the first short chunk.
func ReadTransparentFile(s *Session, id FileID) ([]byte, error) {
	if err := SelectFile(s, id); err != nil {
		return nil, err
	}

	const chunk = 0xE7
	var (
		data  []byte
		total = -1
	)
	for {
		if total >= 0 && len(data) >= total {
			return data[:total], nil
		}
		if len(data) > 0xFFFF {
			return nil, NewDecodingError(fmt.Sprintf("file %s exceeds maximum size", id))
		}

		want := chunk
		if total >= 0 {
			want = min(chunk, total-len(data))
		}

		resp, err := s.Transmit(readBinaryCommand(uint16(len(data)), want))
		if err != nil {
			return nil, fmt.Errorf("read binary %s at offset %d: %w", id, len(data), err)
		}
		data = append(data, resp.Data...)

		if total < 0 {
			if n, ok := derLength(data); ok {
				total = n
				continue
			}
		}
		if len(resp.Data) < want {
			if total >= 0 && len(data) < total {
				return nil, NewDecodingError(fmt.Sprintf("file %s truncated: got %d of %d bytes", id, len(data), total))
			}
			return data, nil
		}
	}
}

// derLength returns the total length of a DER SEQUENCE from its header.
func derLength(b []byte) (int, bool) {
	if len(b) < 2 || b[0] != 0x30 {
		return 0, false
	}
	if b[1] < 0x80 {
		return 2 + int(b[1]), true
	}

	n := int(b[1] & 0x7F)
	if n == 0 || n > 3 || len(b) < 2+n {
		return 0, false
	}
	length := 0
	for _, v := range b[2 : 2+n] {
		length = length<<8 | int(v)
	}
	return 2 + n + length, true
}
