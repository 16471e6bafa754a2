// Package commonsection implements the encrypted JSON container that
// follows the last holder chunk: the 64-byte marker used to locate it
// while scanning the file, and the AES-CBC envelope around the holder
// metadata and secret tree.
package commonsection

import (
	"encoding/json"
	"fmt"

	"mpm/internal/apperr"
	"mpm/internal/base64codec"
	"mpm/internal/crypto"
	"mpm/internal/secrettree"
)

// magicTerminator is the literal that must follow the NUL byte ending the
// JSON plaintext; its absence after decryption means wrong key or corruption.
const magicTerminator = "MAGICCOM"

// Marker is the 64-byte structure that lets a scan recognise where the
// holder chunks end and the common section begins.
type Marker struct {
	Salt [32]byte
	Hash [32]byte
}

// BuildMarker derives a fresh marker for a given database nonce.
func BuildMarker(cp *crypto.Provider, commonMagic uint64) (Marker, error) {
	var m Marker
	if err := cp.RandomFill(m.Salt[:]); err != nil {
		return Marker{}, err
	}
	m.Hash = [32]byte(crypto.Sha256Mix2(m.Salt, commonMagic))
	return m, nil
}

// Verify reports whether a candidate marker's hash matches the expected
// database nonce, in constant time.
func (m Marker) Verify(commonMagic uint64) bool {
	want := crypto.Sha256Mix2(m.Salt, commonMagic)
	return crypto.Key32(m.Hash).Equal(want)
}

// IV returns the AES-CBC initialisation vector derived from the marker's
// salt: its first 16 bytes.
func (m Marker) IV() [16]byte {
	var iv [16]byte
	copy(iv[:], m.Salt[:16])
	return iv
}

// MarshalMarker serialises a marker to its 64-byte wire form.
func MarshalMarker(m Marker) []byte {
	out := make([]byte, 64)
	copy(out[:32], m.Salt[:])
	copy(out[32:], m.Hash[:])
	return out
}

// UnmarshalMarker parses a 64-byte marker.
func UnmarshalMarker(buf []byte) (Marker, error) {
	if len(buf) != 64 {
		return Marker{}, fmt.Errorf("%w: marker must be 64 bytes", apperr.ErrInvalidArg)
	}
	var m Marker
	copy(m.Salt[:], buf[:32])
	copy(m.Hash[:], buf[32:])
	return m, nil
}

// HolderDTO is one holder's entry in the common-section JSON.
type HolderDTO struct {
	Nickname      string `json:"nickname"`
	IDHolder      uint16 `json:"id_holder"`
	CommonNbParts int    `json:"common_nb_parts"`
	SecretNbParts int    `json:"secret_nb_parts"`
	FileIndex     int    `json:"file_index"`
	Email         string `json:"email,omitempty"`
}

// FieldDTO mirrors secrettree.Field, with booleans normally encoded as the
// string literals "true"/"false" per the wire format's historical
// string-handling, but accepted as native JSON booleans too: some producers
// of the common-section JSON emit true/false literals instead of strings.
type FieldDTO struct {
	FieldName   string `json:"field_name"`
	Secret      string `json:"secret"`
	PiggyBanked string `json:"piggy_banked"`
	Value       string `json:"value,omitempty"`
	SessionKey  string `json:"session_key,omitempty"`
}

// fieldDTOWire is FieldDTO's on-the-wire shape, with Secret/PiggyBanked
// left as json.RawMessage so UnmarshalJSON can accept either a quoted
// string or a native boolean literal before normalising to a string.
type fieldDTOWire struct {
	FieldName   string          `json:"field_name"`
	Secret      json.RawMessage `json:"secret"`
	PiggyBanked json.RawMessage `json:"piggy_banked"`
	Value       string          `json:"value,omitempty"`
	SessionKey  string          `json:"session_key,omitempty"`
}

func decodeBoolField(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "false", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return boolToStr(b), nil
	}
	return "", fmt.Errorf("%w: field boolean must be a string or bool, got %s", apperr.ErrInvalidArg, raw)
}

// MarshalJSON always emits Secret/PiggyBanked as string literals, per the
// wire format.
func (f FieldDTO) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		FieldName   string `json:"field_name"`
		Secret      string `json:"secret"`
		PiggyBanked string `json:"piggy_banked"`
		Value       string `json:"value,omitempty"`
		SessionKey  string `json:"session_key,omitempty"`
	}{
		FieldName:   f.FieldName,
		Secret:      f.Secret,
		PiggyBanked: f.PiggyBanked,
		Value:       f.Value,
		SessionKey:  f.SessionKey,
	})
}

// UnmarshalJSON accepts both the string and native boolean forms for
// Secret/PiggyBanked.
func (f *FieldDTO) UnmarshalJSON(data []byte) error {
	var wire fieldDTOWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	secret, err := decodeBoolField(wire.Secret)
	if err != nil {
		return err
	}
	piggyBanked, err := decodeBoolField(wire.PiggyBanked)
	if err != nil {
		return err
	}
	f.FieldName = wire.FieldName
	f.Secret = secret
	f.PiggyBanked = piggyBanked
	f.Value = wire.Value
	f.SessionKey = wire.SessionKey
	return nil
}

// ItemDTO mirrors secrettree.Item.
type ItemDTO struct {
	Title  string     `json:"title"`
	ID     int        `json:"id"`
	AesIV  string     `json:"aes_iv"`
	Fields []FieldDTO `json:"fields"`
}

// FolderDTO mirrors secrettree.Folder, recursively.
type FolderDTO struct {
	Title      string      `json:"title"`
	ID         int         `json:"id"`
	Secrets    []ItemDTO   `json:"secrets"`
	SubFolders []FolderDTO `json:"sub_folders"`
}

// Document is the full common-section JSON payload.
type Document struct {
	CommonThreshold int         `json:"common_treshold"`
	SecretThreshold int         `json:"secret_treshold"`
	NextIDHolder    int         `json:"next_id_holder"`
	Holders         []HolderDTO `json:"holders"`
	RootFolder      FolderDTO   `json:"root_folder"`
}

func boolToStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func strToBool(s string) bool {
	return s == "true"
}

func encodeIV(iv [16]byte) string {
	return base64codec.Encode(iv[:])
}

func decodeIV(s string) ([16]byte, error) {
	var iv [16]byte
	b, err := base64codec.Decode(s, 16)
	if err != nil {
		return iv, err
	}
	if len(b) != 16 {
		return iv, fmt.Errorf("%w: item aes_iv must decode to 16 bytes, got %d", apperr.ErrInvalidArg, len(b))
	}
	copy(iv[:], b)
	return iv, nil
}

// FolderToDTO converts a live tree into its JSON-serialisable form.
func FolderToDTO(f *secrettree.Folder) FolderDTO {
	dto := FolderDTO{Title: f.Title, ID: f.ID}
	for _, it := range f.Items {
		itemDTO := ItemDTO{Title: it.Title, ID: it.ID, AesIV: encodeIV(it.AesIV)}
		for _, fld := range it.Fields {
			itemDTO.Fields = append(itemDTO.Fields, FieldDTO{
				FieldName:   fld.Name,
				Secret:      boolToStr(fld.Secret),
				PiggyBanked: boolToStr(fld.PiggyBanked),
				Value:       fld.Value,
				SessionKey:  fld.SessionKey,
			})
		}
		dto.Secrets = append(dto.Secrets, itemDTO)
	}
	for _, sub := range f.SubFolders {
		dto.SubFolders = append(dto.SubFolders, FolderToDTO(sub))
	}
	return dto
}

// DTOToFolder converts a parsed JSON document back into a live tree.
func DTOToFolder(dto FolderDTO) (*secrettree.Folder, error) {
	f := &secrettree.Folder{Title: dto.Title, ID: dto.ID}
	for _, itemDTO := range dto.Secrets {
		iv, err := decodeIV(itemDTO.AesIV)
		if err != nil {
			return nil, err
		}
		item := &secrettree.Item{Title: itemDTO.Title, ID: itemDTO.ID, AesIV: iv}
		for _, fieldDTO := range itemDTO.Fields {
			item.Fields = append(item.Fields, secrettree.Field{
				Name:        fieldDTO.FieldName,
				Value:       fieldDTO.Value,
				Secret:      strToBool(fieldDTO.Secret),
				PiggyBanked: strToBool(fieldDTO.PiggyBanked),
				SessionKey:  fieldDTO.SessionKey,
			})
		}
		f.Items = append(f.Items, item)
	}
	for _, subDTO := range dto.SubFolders {
		sub, err := DTOToFolder(subDTO)
		if err != nil {
			return nil, err
		}
		f.SubFolders = append(f.SubFolders, sub)
	}
	return f, nil
}

// Seal serialises doc to JSON, appends the NUL+MAGICCOM terminator and
// random padding to a block boundary plus 0..15 trailing random bytes,
// and encrypts the result with AES-CBC under key/iv. The returned buffer
// is what follows the marker in the file.
func Seal(cp *crypto.Provider, key crypto.Key32, iv [16]byte, doc Document) ([]byte, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrCryptoFail, err)
	}
	plain := append(body, 0)
	plain = append(plain, []byte(magicTerminator)...)

	padded := len(plain)
	if rem := padded % 16; rem != 0 {
		padded += 16 - rem
	}
	buf := make([]byte, padded)
	copy(buf, plain)
	if tail := buf[len(plain):]; len(tail) > 0 {
		if err := cp.RandomFill(tail); err != nil {
			return nil, err
		}
	}

	if err := cp.AesCbc(buf, key, iv, true); err != nil {
		return nil, err
	}

	var trailerLenByte [1]byte
	if err := cp.RandomFill(trailerLenByte[:]); err != nil {
		return nil, err
	}
	trailerLen := int(trailerLenByte[0] & 0x0F)
	trailer := make([]byte, trailerLen)
	if trailerLen > 0 {
		if err := cp.RandomFill(trailer); err != nil {
			return nil, err
		}
	}
	return append(buf, trailer...), nil
}

// Open decrypts a common-section ciphertext (which may include the
// trailing random bytes Seal appends; they are ignored since the
// plaintext length is self-describing via the NUL terminator) and
// verifies the MAGICCOM terminator.
func Open(cp *crypto.Provider, key crypto.Key32, iv [16]byte, ciphertext []byte) (Document, error) {
	var doc Document
	if len(ciphertext) < 16 || len(ciphertext)%16 != 0 {
		// Trailing random bytes may make the total non-block-aligned;
		// truncate down to the last full block before decrypting.
		ciphertext = ciphertext[:len(ciphertext)-(len(ciphertext)%16)]
	}
	if len(ciphertext) == 0 {
		return doc, fmt.Errorf("%w: common section ciphertext too short", apperr.ErrIntegrityFail)
	}
	buf := append([]byte(nil), ciphertext...)
	if err := cp.AesCbc(buf, key, iv, false); err != nil {
		return doc, err
	}

	if len(buf) <= 20 {
		return doc, fmt.Errorf("%w: common section plaintext too short", apperr.ErrIntegrityFail)
	}
	nulAt := -1
	for i, b := range buf {
		if b == 0 {
			nulAt = i
			break
		}
	}
	if nulAt < 0 {
		return doc, fmt.Errorf("%w: common section missing terminator", apperr.ErrIntegrityFail)
	}
	if nulAt+1+len(magicTerminator) > len(buf) {
		return doc, fmt.Errorf("%w: common section truncated before MAGICCOM", apperr.ErrIntegrityFail)
	}
	if string(buf[nulAt+1:nulAt+1+len(magicTerminator)]) != magicTerminator {
		return doc, fmt.Errorf("%w: MAGICCOM mismatch (wrong key or corrupt file)", apperr.ErrIntegrityFail)
	}

	if err := json.Unmarshal(buf[:nulAt], &doc); err != nil {
		return doc, fmt.Errorf("%w: common section json: %v", apperr.ErrIntegrityFail, err)
	}
	return doc, nil
}
