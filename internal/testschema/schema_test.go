package testschema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/capnkit/capnp"
)

func buildPerson(t *testing.T, msg *capnp.Message) Person {
	t.Helper()
	p, err := NewRootPerson(msg)
	require.NoError(t, err)
	require.NoError(t, p.SetID(7))
	require.NoError(t, p.SetName("Ada"))
	require.NoError(t, p.SetEmail("ada@example.com"))
	require.NoError(t, p.SetEmployed(true))

	phones, err := p.NewPhones(2)
	require.NoError(t, err)
	for i, n := range []string{"555-0100", "555-0199"} {
		ph, err := phones.At(i)
		require.NoError(t, err)
		require.NoError(t, ph.SetNumber(n))
		require.NoError(t, ph.SetType(PhoneType(i+1)))
	}

	addr, err := p.NewAddress()
	require.NoError(t, err)
	require.NoError(t, addr.SetStreet("1 Loop"))
	require.NoError(t, addr.SetZip(94000))

	tags, err := p.NewTags(2)
	require.NoError(t, err)
	require.NoError(t, tags.Set(0, "math"))
	require.NoError(t, tags.Set(1, "engines"))
	return p
}

func TestPerson_RoundTrip(t *testing.T) {
	msg := capnp.NewMessage()
	buildPerson(t, msg)
	wire, err := msg.Marshal()
	require.NoError(t, err)

	back, err := capnp.Unmarshal(wire, capnp.WithReadOnly())
	require.NoError(t, err)
	p, err := ReadRootPerson(back)
	require.NoError(t, err)

	assert.Equal(t, uint64(7), p.ID())
	assert.Equal(t, uint16(18), p.Age(), "unset age reads its default")
	assert.True(t, p.Employed())
	name, err := p.Name()
	require.NoError(t, err)
	assert.Equal(t, "Ada", name)

	phones, err := p.Phones()
	require.NoError(t, err)
	require.Equal(t, 2, phones.Len())
	ph, err := phones.At(1)
	require.NoError(t, err)
	num, err := ph.Number()
	require.NoError(t, err)
	assert.Equal(t, "555-0199", num)
	assert.Equal(t, PhoneType_work, ph.Type())
	assert.Equal(t, "work", ph.Type().String())

	require.True(t, p.HasAddress())
	addr, err := p.Address()
	require.NoError(t, err)
	street, err := addr.Street()
	require.NoError(t, err)
	assert.Equal(t, "1 Loop", street)
	city, err := addr.City()
	require.NoError(t, err)
	assert.Empty(t, city)
	assert.Equal(t, uint32(94000), addr.Zip())

	tags, err := p.Tags()
	require.NoError(t, err)
	tag, err := tags.At(1)
	require.NoError(t, err)
	assert.Equal(t, "engines", tag)
}

func TestPerson_AgeDefault(t *testing.T) {
	msg := capnp.NewMessage()
	p, err := NewRootPerson(msg)
	require.NoError(t, err)
	assert.Equal(t, uint16(18), p.Age())

	require.NoError(t, p.SetAge(18))
	assert.Zero(t, p.Uint16(8), "the default is stored as zero")

	require.NoError(t, p.SetAge(30))
	assert.Equal(t, uint16(30), p.Age())
	assert.Equal(t, uint16(30^18), p.Uint16(8))
}

func TestPerson_SchemaEvolution(t *testing.T) {
	old := capnp.NewMessage()
	v1, err := NewRootPersonV1(old)
	require.NoError(t, err)
	require.NoError(t, v1.SetID(3))
	require.NoError(t, v1.SetName("Grace"))

	p, err := ReadRootPerson(old)
	require.NoError(t, err)
	assert.Equal(t, PersonSize, p.Size(), "reading with the newer schema grows the root")
	assert.Equal(t, uint64(3), p.ID())
	assert.Equal(t, uint16(18), p.Age())
	name, err := p.Name()
	require.NoError(t, err)
	assert.Equal(t, "Grace", name)
	assert.False(t, p.HasAddress())
	require.NoError(t, p.SetEmail("grace@example.com"))

	// An older reader still sees its own fields.
	again, err := ReadRootPersonV1(old)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), again.ID())
	name, err = again.Name()
	require.NoError(t, err)
	assert.Equal(t, "Grace", name)
}

func TestEnvelope(t *testing.T) {
	msg := capnp.NewMessage()
	e, err := NewRootEnvelope(msg)
	require.NoError(t, err)
	require.NoError(t, e.SetSeq(11))
	require.NoError(t, e.SetAttachment([]byte{0xde, 0xad}))
	require.NoError(t, e.SetReply(4))

	body, err := e.NewBody()
	require.NoError(t, err)
	require.NoError(t, body.SetName("Linus"))

	other := capnp.NewMessage()
	src := buildPerson(t, other)
	require.NoError(t, e.SetBody(src))
	body, err = e.Body()
	require.NoError(t, err)
	name, err := body.Name()
	require.NoError(t, err)
	assert.Equal(t, "Ada", name, "SetBody deep-copies across messages")

	o, err := e.DisownBody()
	require.NoError(t, err)
	assert.False(t, e.HasBody())
	require.NoError(t, e.AdoptBody(o))
	assert.True(t, e.HasBody())

	att, err := e.Attachment()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad}, att)
	id, ok, err := e.Reply()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, capnp.CapabilityID(4), id)
	assert.Equal(t, uint64(11), e.Seq())
}

func TestAddress_Orphan(t *testing.T) {
	msg := capnp.NewMessage()
	p, err := NewRootPerson(msg)
	require.NoError(t, err)

	a, err := NewAddress(msg)
	require.NoError(t, err)
	require.NoError(t, a.SetCity("Oslo"))
	require.NoError(t, p.SetAddress(a))

	got, err := p.Address()
	require.NoError(t, err)
	city, err := got.City()
	require.NoError(t, err)
	assert.Equal(t, "Oslo", city)
}
