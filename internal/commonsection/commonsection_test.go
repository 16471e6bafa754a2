package commonsection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpm/internal/crypto"
	"mpm/internal/secrettree"
)

func TestMarker_VerifyRoundTrip(t *testing.T) {
	cp := crypto.New(nil)
	m, err := BuildMarker(cp, 0x1122334455)
	require.NoError(t, err)
	assert.True(t, m.Verify(0x1122334455))
	assert.False(t, m.Verify(0x99))

	wire := MarshalMarker(m)
	got, err := UnmarshalMarker(wire)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestSealOpen_RoundTrip(t *testing.T) {
	cp := crypto.New(nil)
	var key crypto.Key32
	require.NoError(t, cp.RandomFill(key[:]))
	m, err := BuildMarker(cp, 42)
	require.NoError(t, err)

	root := secrettree.NewRoot("root")
	root.Items = append(root.Items, &secrettree.Item{
		Title: "email", ID: 2,
		Fields: []secrettree.Field{{Name: "login", Value: "alice@example.com"}},
	})

	doc := Document{
		CommonThreshold: 2,
		SecretThreshold: 3,
		NextIDHolder:    5,
		Holders: []HolderDTO{
			{Nickname: "alice", IDHolder: 1, CommonNbParts: 2, SecretNbParts: 1},
		},
		RootFolder: FolderToDTO(root),
	}

	ct, err := Seal(cp, key, m.IV(), doc)
	require.NoError(t, err)

	got, err := Open(cp, key, m.IV(), ct)
	require.NoError(t, err)
	assert.Equal(t, doc.NextIDHolder, got.NextIDHolder)
	assert.Equal(t, "alice", got.Holders[0].Nickname)

	tree, err := DTOToFolder(got.RootFolder)
	require.NoError(t, err)
	assert.Equal(t, "email", tree.Items[0].Title)
	assert.Equal(t, "alice@example.com", tree.Items[0].Fields[0].Value)
}

func TestFieldDTO_AcceptsStringAndNativeBooleans(t *testing.T) {
	var stringForm FieldDTO
	require.NoError(t, json.Unmarshal([]byte(`{"field_name":"login","secret":"true","piggy_banked":"false"}`), &stringForm))
	assert.Equal(t, "true", stringForm.Secret)
	assert.Equal(t, "false", stringForm.PiggyBanked)

	var nativeForm FieldDTO
	require.NoError(t, json.Unmarshal([]byte(`{"field_name":"login","secret":true,"piggy_banked":false}`), &nativeForm))
	assert.Equal(t, "true", nativeForm.Secret)
	assert.Equal(t, "false", nativeForm.PiggyBanked)

	out, err := json.Marshal(nativeForm)
	require.NoError(t, err)
	assert.JSONEq(t, `{"field_name":"login","secret":"true","piggy_banked":"false"}`, string(out))
}

func TestOpen_WrongKeyFails(t *testing.T) {
	cp := crypto.New(nil)
	var key, wrongKey crypto.Key32
	require.NoError(t, cp.RandomFill(key[:]))
	require.NoError(t, cp.RandomFill(wrongKey[:]))
	m, err := BuildMarker(cp, 1)
	require.NoError(t, err)

	doc := Document{RootFolder: FolderToDTO(secrettree.NewRoot("root"))}
	ct, err := Seal(cp, key, m.IV(), doc)
	require.NoError(t, err)

	_, err = Open(cp, wrongKey, m.IV(), ct)
	assert.Error(t, err)
}
