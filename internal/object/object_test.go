package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDN = "cn=Alice,ou=People,dc=example,dc=com"

func TestNew_RecordsNoChanges(t *testing.T) {
	obj := New("user", map[string]any{"dn": testDN, "name": "Alice"})

	assert.Equal(t, "user", obj.Type())
	assert.Equal(t, testDN, obj.DN())
	assert.True(t, obj.Batch().IsEmpty())
	assert.Equal(t, testDN, obj.Batch().DN())
}

func TestObject_DNNotString(t *testing.T) {
	obj := New("", map[string]any{"dn": []string{testDN}})
	assert.Empty(t, obj.DN())
}

func TestObject_CaseInsensitiveNames(t *testing.T) {
	obj := New("", map[string]any{"dn": testDN})
	obj.Set("Mail", "alice@example.com")
	obj.Set("MAIL", "alice@example.org")

	value, ok := obj.Get("mail")
	assert.True(t, ok)
	assert.Equal(t, "alice@example.org", value)
	assert.True(t, obj.Has("mAiL"))
	assert.Equal(t, []string{"dn", "Mail"}, obj.Names(), "first-seen casing is kept")

	changes := obj.Batch().Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, "Mail", changes[0].Attribute)
	assert.Equal(t, "MAIL", changes[1].Attribute)
}

func TestObject_Mutators(t *testing.T) {
	obj := New("", map[string]any{"dn": testDN, "phones": []string{"1", "2"}})

	obj.Add("phones", "3")
	phones, _ := obj.Get("phones")
	assert.Equal(t, []any{"1", "2", "3"}, phones)

	obj.Remove("phones", "1", "3")
	phones, _ = obj.Get("phones")
	assert.Equal(t, []any{"2"}, phones)

	obj.Remove("phones", "2")
	assert.False(t, obj.Has("phones"))

	obj.Set("description", "contractor")
	obj.Reset("description")
	assert.False(t, obj.Has("description"))

	assert.Equal(t, []Change{
		{Attribute: "phones", Kind: ChangeAdd, Values: []any{"3"}},
		{Attribute: "phones", Kind: ChangeRemove, Values: []any{"1", "3"}},
		{Attribute: "phones", Kind: ChangeRemove, Values: []any{"2"}},
		{Attribute: "description", Kind: ChangeReplace, Values: []any{"contractor"}},
		{Attribute: "description", Kind: ChangeRemoveAll},
	}, obj.Batch().Changes())
}

func TestObject_RemoveAbsentAttributeStillRecords(t *testing.T) {
	obj := New("", map[string]any{"dn": testDN})
	obj.Remove("memberOf", "cn=Staff,dc=example,dc=com")

	assert.False(t, obj.Has("memberOf"))
	assert.Equal(t, 1, obj.Batch().Len())
}

func TestObject_Refresh(t *testing.T) {
	obj := New("", map[string]any{"dn": testDN})
	obj.Set("description", "pending")

	obj.Refresh(map[string]any{"dn": "cn=Alice,ou=New,dc=example,dc=com", "cn": "Alice"})

	assert.Equal(t, "cn=Alice,ou=New,dc=example,dc=com", obj.DN())
	assert.Equal(t, obj.DN(), obj.Batch().DN())
	assert.Equal(t, 1, obj.Batch().Len())
	assert.True(t, obj.Has("cn"))
}

func TestObject_SetDN(t *testing.T) {
	obj := New("", nil)
	batch := obj.Batch()

	obj.SetDN(testDN)

	assert.Equal(t, testDN, obj.DN())
	assert.Same(t, batch, obj.Batch(), "rekeying keeps the batch")
	assert.Equal(t, testDN, batch.DN())
	assert.True(t, batch.IsEmpty())
}

func TestObject_MutatorsOnDN(t *testing.T) {
	const moved = "cn=Bob,ou=People,dc=example,dc=com"
	obj := New("", map[string]any{AttributeDN: testDN})
	batch := obj.Batch()

	obj.Set("DN", moved)

	assert.Equal(t, moved, obj.DN())
	assert.Same(t, batch, obj.Batch())
	assert.Equal(t, moved, batch.DN())
	assert.True(t, batch.IsEmpty(), "dn changes are not recorded")

	obj.Add(AttributeDN, "cn=Other,dc=example,dc=com")
	obj.Remove(AttributeDN, moved)
	obj.Reset(AttributeDN)

	assert.Equal(t, moved, obj.DN())
	assert.Equal(t, moved, batch.DN())
	assert.True(t, batch.IsEmpty())
}

func TestObject_ResetBatch(t *testing.T) {
	obj := New("", map[string]any{"dn": testDN})
	obj.Set("description", "pending")
	previous := obj.Batch()

	obj.ResetBatch()

	assert.True(t, obj.Batch().IsEmpty())
	assert.Equal(t, testDN, obj.Batch().DN())
	assert.Equal(t, 1, previous.Len())
}

func TestObject_AttributesIsCopy(t *testing.T) {
	obj := New("", map[string]any{"dn": testDN, "cn": "Alice"})

	attrs := obj.Attributes()
	attrs["cn"] = "Mallory"
	delete(attrs, "dn")

	cn, _ := obj.Get("cn")
	assert.Equal(t, "Alice", cn)
	assert.Equal(t, testDN, obj.DN())
}

func TestValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []any
	}{
		{name: "nil", value: nil, want: nil},
		{name: "string", value: "a", want: []any{"a"}},
		{name: "bytes", value: []byte{1, 2}, want: []any{[]byte{1, 2}}},
		{name: "int", value: 7, want: []any{7}},
		{name: "any slice", value: []any{"a", 1}, want: []any{"a", 1}},
		{name: "string slice", value: []string{"a", "b"}, want: []any{"a", "b"}},
		{name: "empty slice", value: []string{}, want: []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Values(tt.value))
		})
	}
}

func TestBatch(t *testing.T) {
	b := NewBatch(testDN)
	assert.True(t, b.IsEmpty())

	values := []any{"a"}
	b.Add("cn", values...)
	values[0] = "mutated"
	b.Replace("sn", "Smith")
	b.RemoveAll("mail")

	require.Equal(t, 3, b.Len())
	changes := b.Changes()
	assert.Equal(t, []any{"a"}, changes[0].Values, "values are copied on record")
	assert.Equal(t, ChangeReplace, changes[1].Kind)
	assert.Nil(t, changes[2].Values)

	changes[0].Attribute = "changed"
	assert.Equal(t, "cn", b.Changes()[0].Attribute)

	b.SetDN("cn=Other,dc=example,dc=com")
	assert.Equal(t, "cn=Other,dc=example,dc=com", b.DN())
	assert.Equal(t, 3, b.Len())
}

func TestChangeKind_String(t *testing.T) {
	assert.Equal(t, "add", ChangeAdd.String())
	assert.Equal(t, "remove", ChangeRemove.String())
	assert.Equal(t, "remove_all", ChangeRemoveAll.String())
	assert.Equal(t, "replace", ChangeReplace.String())
	assert.Equal(t, "unknown", ChangeKind(42).String())
}
