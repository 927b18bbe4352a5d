// Package testschema holds typed wrappers written the way a schema compiler
// would emit them, for the schema below. Tests and the example program use
// them instead of raw offsets.
//
//	struct Person {
//	  id       @0 :UInt64;
//	  age      @1 :UInt16 = 18;
//	  employed @2 :Bool;
//	  name     @3 :Text;
//	  email    @4 :Text;
//	  phones   @5 :List(Phone);
//	  address  @6 :Address;
//	  tags     @7 :List(Text);
//	}
//
//	struct Phone {
//	  number @0 :Text;
//	  type   @1 :PhoneType;
//	}
//
//	enum PhoneType { mobile @0; home @1; work @2; }
//
//	struct Address {
//	  street @0 :Text;
//	  city   @1 :Text;
//	  zip    @2 :UInt32;
//	}
//
//	struct Envelope {
//	  seq        @0 :UInt64;
//	  body       @1 :Person;
//	  attachment @2 :Data;
//	  reply      @3 :Capability;
//	}
//
// PersonV1 is the first revision of Person, before age and everything after
// email were added.
package testschema

import (
	"github.com/joshuapare/capnkit/capnp"
)

var (
	PersonSize   = capnp.ObjectSize{DataByteLength: 16, PointerLength: 5}
	PersonV1Size = capnp.ObjectSize{DataByteLength: 8, PointerLength: 2}
	PhoneSize    = capnp.ObjectSize{DataByteLength: 8, PointerLength: 1}
	AddressSize  = capnp.ObjectSize{DataByteLength: 8, PointerLength: 2}
	EnvelopeSize = capnp.ObjectSize{DataByteLength: 8, PointerLength: 3}
)

const personAgeDefault uint16 = 18

// Person.

type Person struct{ capnp.Struct }

func NewRootPerson(msg *capnp.Message) (Person, error) {
	s, err := msg.InitRoot(PersonSize)
	return Person{s}, err
}

func ReadRootPerson(msg *capnp.Message) (Person, error) {
	s, err := msg.Root(PersonSize)
	return Person{s}, err
}

func (p Person) ID() uint64               { return p.Uint64(0) }
func (p Person) SetID(v uint64) error     { return p.SetUint64(0, v) }
func (p Person) Age() uint16              { return p.Uint16Default(8, personAgeDefault) }
func (p Person) SetAge(v uint16) error    { return p.SetUint16Default(8, v, personAgeDefault) }
func (p Person) Employed() bool           { return p.Bit(80) }
func (p Person) SetEmployed(v bool) error { return p.SetBit(80, v) }

func (p Person) Name() (string, error)   { return p.Text(0, "") }
func (p Person) HasName() bool           { return p.HasPointer(0) }
func (p Person) SetName(v string) error  { return p.SetText(0, v) }
func (p Person) Email() (string, error)  { return p.Text(1, "") }
func (p Person) HasEmail() bool          { return p.HasPointer(1) }
func (p Person) SetEmail(v string) error { return p.SetText(1, v) }

func (p Person) Phones() (Phone_List, error) {
	l, err := p.List(2, capnp.ElementComposite, PhoneSize, capnp.Pointer{})
	return Phone_List{capnp.StructList{List: l}}, err
}

func (p Person) NewPhones(n int) (Phone_List, error) {
	l, err := p.InitList(2, capnp.ElementComposite, n, PhoneSize)
	return Phone_List{capnp.StructList{List: l}}, err
}

func (p Person) Address() (Address, error) {
	s, err := p.Struct.Struct(3, AddressSize, capnp.Pointer{})
	return Address{s}, err
}

func (p Person) HasAddress() bool { return p.HasPointer(3) }

func (p Person) NewAddress() (Address, error) {
	s, err := p.InitStruct(3, AddressSize)
	return Address{s}, err
}

func (p Person) SetAddress(a Address) error { return p.SetStruct(3, a.Struct) }

func (p Person) Tags() (capnp.TextList, error) {
	l, err := p.List(4, capnp.ElementPointer, capnp.ObjectSize{}, capnp.Pointer{})
	return capnp.TextList{List: l}, err
}

func (p Person) NewTags(n int) (capnp.TextList, error) {
	l, err := p.InitList(4, capnp.ElementPointer, n, capnp.ObjectSize{})
	return capnp.TextList{List: l}, err
}

// PersonV1.

type PersonV1 struct{ capnp.Struct }

func NewRootPersonV1(msg *capnp.Message) (PersonV1, error) {
	s, err := msg.InitRoot(PersonV1Size)
	return PersonV1{s}, err
}

func ReadRootPersonV1(msg *capnp.Message) (PersonV1, error) {
	s, err := msg.Root(PersonV1Size)
	return PersonV1{s}, err
}

func (p PersonV1) ID() uint64             { return p.Uint64(0) }
func (p PersonV1) SetID(v uint64) error   { return p.SetUint64(0, v) }
func (p PersonV1) Name() (string, error)  { return p.Text(0, "") }
func (p PersonV1) SetName(v string) error { return p.SetText(0, v) }

// Phone.

type PhoneType uint16

const (
	PhoneType_mobile PhoneType = 0
	PhoneType_home   PhoneType = 1
	PhoneType_work   PhoneType = 2
)

func (t PhoneType) String() string {
	switch t {
	case PhoneType_mobile:
		return "mobile"
	case PhoneType_home:
		return "home"
	case PhoneType_work:
		return "work"
	default:
		return ""
	}
}

type Phone struct{ capnp.Struct }

func (p Phone) Number() (string, error)   { return p.Text(0, "") }
func (p Phone) SetNumber(v string) error  { return p.SetText(0, v) }
func (p Phone) Type() PhoneType           { return PhoneType(p.Uint16(0)) }
func (p Phone) SetType(v PhoneType) error { return p.SetUint16(0, uint16(v)) }

type Phone_List struct{ capnp.StructList }

func (l Phone_List) At(i int) (Phone, error) {
	s, err := l.StructList.At(i)
	return Phone{s}, err
}

func (l Phone_List) Set(i int, v Phone) error { return l.StructList.Set(i, v.Struct) }

// Address.

type Address struct{ capnp.Struct }

func NewAddress(msg *capnp.Message) (Address, error) {
	o, err := msg.NewStructOrphan(AddressSize)
	if err != nil {
		return Address{}, err
	}
	s, err := o.Struct()
	return Address{s}, err
}

func (a Address) Street() (string, error)  { return a.Text(0, "") }
func (a Address) SetStreet(v string) error { return a.SetText(0, v) }
func (a Address) City() (string, error)    { return a.Text(1, "") }
func (a Address) SetCity(v string) error   { return a.SetText(1, v) }
func (a Address) Zip() uint32              { return a.Uint32(0) }
func (a Address) SetZip(v uint32) error    { return a.SetUint32(0, v) }

// Envelope.

type Envelope struct{ capnp.Struct }

func NewRootEnvelope(msg *capnp.Message) (Envelope, error) {
	s, err := msg.InitRoot(EnvelopeSize)
	return Envelope{s}, err
}

func ReadRootEnvelope(msg *capnp.Message) (Envelope, error) {
	s, err := msg.Root(EnvelopeSize)
	return Envelope{s}, err
}

func (e Envelope) Seq() uint64           { return e.Uint64(0) }
func (e Envelope) SetSeq(v uint64) error { return e.SetUint64(0, v) }

func (e Envelope) Body() (Person, error) {
	s, err := e.Struct.Struct(0, PersonSize, capnp.Pointer{})
	return Person{s}, err
}

func (e Envelope) HasBody() bool { return e.HasPointer(0) }

func (e Envelope) NewBody() (Person, error) {
	s, err := e.InitStruct(0, PersonSize)
	return Person{s}, err
}

func (e Envelope) SetBody(p Person) error { return e.SetStruct(0, p.Struct) }

// DisownBody detaches the body so it can be adopted elsewhere in the message.
func (e Envelope) DisownBody() (*capnp.Orphan, error) { return e.Disown(0) }

func (e Envelope) AdoptBody(o *capnp.Orphan) error { return e.Adopt(0, o) }

func (e Envelope) Attachment() ([]byte, error)  { return e.Data(1, nil) }
func (e Envelope) SetAttachment(b []byte) error { return e.SetData(1, b) }

func (e Envelope) Reply() (capnp.CapabilityID, bool, error) { return e.Interface(2) }
func (e Envelope) SetReply(id capnp.CapabilityID) error     { return e.SetInterface(2, id) }
