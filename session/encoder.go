package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionCurrent = 1

const (
	flagFirstFactor byte = 1 << iota
	flagSecondFactor
	flagKeepMeLoggedIn
	flagIdentityCheck
)

// Encode serializes a session into the compact binary record stored in
// Redis. Strings are length-prefixed; ceremony blobs carry 16-bit lengths.
func Encode(s *AuthenticationSession) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	var flags byte
	if s.FirstFactor {
		flags |= flagFirstFactor
	}
	if s.SecondFactor {
		flags |= flagSecondFactor
	}
	if s.KeepMeLoggedIn {
		flags |= flagKeepMeLoggedIn
	}
	if s.IdentityCheck != nil {
		flags |= flagIdentityCheck
	}
	buf.WriteByte(flags)

	if err := writeShortString(&buf, "username", s.Username); err != nil {
		return nil, err
	}
	if err := writeShortString(&buf, "email", s.Email); err != nil {
		return nil, err
	}

	if len(s.Groups) > 255 {
		return nil, errors.New("too many groups")
	}
	buf.WriteByte(byte(len(s.Groups)))
	for _, g := range s.Groups {
		if err := writeShortString(&buf, "group", g); err != nil {
			return nil, err
		}
	}

	if s.IdentityCheck != nil {
		if err := writeShortString(&buf, "identity check challenge", s.IdentityCheck.Challenge); err != nil {
			return nil, err
		}
		if err := writeShortString(&buf, "identity check username", s.IdentityCheck.Username); err != nil {
			return nil, err
		}
	}

	if err := writeBlob(&buf, "register request", s.RegisterRequest); err != nil {
		return nil, err
	}
	if err := writeBlob(&buf, "sign request", s.SignRequest); err != nil {
		return nil, err
	}
	if err := writeBlob(&buf, "redirect", []byte(s.Redirect)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a binary session record produced by [Encode].
func Decode(data []byte) (*AuthenticationSession, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	s := &AuthenticationSession{
		FirstFactor:    flags&flagFirstFactor != 0,
		SecondFactor:   flags&flagSecondFactor != 0,
		KeepMeLoggedIn: flags&flagKeepMeLoggedIn != 0,
	}

	if s.Username, err = readShortString(reader); err != nil {
		return nil, err
	}
	if s.Email, err = readShortString(reader); err != nil {
		return nil, err
	}

	groupCount, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if groupCount > 0 {
		s.Groups = make([]string, 0, groupCount)
		for i := 0; i < int(groupCount); i++ {
			g, err := readShortString(reader)
			if err != nil {
				return nil, err
			}
			s.Groups = append(s.Groups, g)
		}
	}

	if flags&flagIdentityCheck != 0 {
		check := &IdentityCheck{}
		if check.Challenge, err = readShortString(reader); err != nil {
			return nil, err
		}
		if check.Username, err = readShortString(reader); err != nil {
			return nil, err
		}
		s.IdentityCheck = check
	}

	if s.RegisterRequest, err = readBlob(reader); err != nil {
		return nil, err
	}
	if s.SignRequest, err = readBlob(reader); err != nil {
		return nil, err
	}

	redirect, err := readBlob(reader)
	if err != nil {
		return nil, err
	}
	s.Redirect = string(redirect)

	return s, nil
}

func writeShortString(buf *bytes.Buffer, field, value string) error {
	if len(value) > 255 {
		return errors.New(field + " too long")
	}
	buf.WriteByte(byte(len(value)))
	buf.WriteString(value)
	return nil
}

func readShortString(reader *bytes.Reader) (string, error) {
	length, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	if length == 0 {
		return "", nil
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}

func writeBlob(buf *bytes.Buffer, field string, value []byte) error {
	if len(value) > 65535 {
		return errors.New(field + " too large")
	}
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(value)))
	buf.Write(length[:])
	buf.Write(value)
	return nil
}

func readBlob(reader *bytes.Reader) ([]byte, error) {
	var length [2]byte
	if _, err := io.ReadFull(reader, length[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint16(length[:])
	if size == 0 {
		return nil, nil
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return nil, err
	}
	return raw, nil
}
