package sv

// Enumerated attribute values. Each enum that can be left open by the
// source carries an Implicit member: the deliberate "requires elaboration"
// boundary. The extractor must never substitute a guess for it.

// ParamKind distinguishes overridable parameters from localparams.
type ParamKind string

const (
	ParamKindParameter  ParamKind = "Parameter"
	ParamKindLocalParam ParamKind = "LocalParam"
)

// PortDirection is the declared direction of a port.
type PortDirection string

const (
	DirectionInout    PortDirection = "Inout"
	DirectionInput    PortDirection = "Input"
	DirectionOutput   PortDirection = "Output"
	DirectionRef      PortDirection = "Ref"
	DirectionImplicit PortDirection = "IMPLICIT"
)

// DataKind says whether a signal is a continuously-driven net or a
// procedurally-assigned variable.
type DataKind string

const (
	KindNet      DataKind = "Net"
	KindVariable DataKind = "Variable"
	KindImplicit DataKind = "IMPLICIT"
)

// Signedness of an integral type.
type Signedness string

const (
	SignednessSigned      Signedness = "Signed"
	SignednessUnsigned    Signedness = "Unsigned"
	SignednessUnsupported Signedness = "Unsupported"
	SignednessImplicit    Signedness = "IMPLICIT"
)

// DataType is the declared base type of a port or parameter.
type DataType string

const (
	TypeLogic       DataType = "Logic"
	TypeReg         DataType = "Reg"
	TypeBit         DataType = "Bit"
	TypeByte        DataType = "Byte"
	TypeInteger     DataType = "Integer"
	TypeInt         DataType = "Int"
	TypeShortint    DataType = "Shortint"
	TypeLongint     DataType = "Longint"
	TypeTime        DataType = "Time"
	TypeReal        DataType = "Real"
	TypeShortreal   DataType = "Shortreal"
	TypeRealtime    DataType = "Realtime"
	TypeArray       DataType = "Array"
	TypeEnum        DataType = "Enum"
	TypeStruct      DataType = "Struct"
	TypeUnion       DataType = "Union"
	TypeClass       DataType = "Class"
	TypeTypeRef     DataType = "TypeRef"
	TypeString      DataType = "String"
	TypeUnsupported DataType = "Unsupported"
	TypeImplicit    DataType = "IMPLICIT"
)

// NetType is the declared net kind of a net-kind port.
type NetType string

const (
	NetWire     NetType = "Wire"
	NetUwire    NetType = "Uwire"
	NetTri      NetType = "Tri"
	NetWor      NetType = "Wor"
	NetWand     NetType = "Wand"
	NetTriand   NetType = "Triand"
	NetTrior    NetType = "Trior"
	NetTrireg   NetType = "Trireg"
	NetTri0     NetType = "Tri0"
	NetTri1     NetType = "Tri1"
	NetSupply0  NetType = "Supply0"
	NetSupply1  NetType = "Supply1"
	NetImplicit NetType = "IMPLICIT"
)

// netTypeKeywords maps source keywords to NetType values.
var netTypeKeywords = map[string]NetType{
	"wire":    NetWire,
	"uwire":   NetUwire,
	"tri":     NetTri,
	"wor":     NetWor,
	"wand":    NetWand,
	"triand":  NetTriand,
	"trior":   NetTrior,
	"trireg":  NetTrireg,
	"tri0":    NetTri0,
	"tri1":    NetTri1,
	"supply0": NetSupply0,
	"supply1": NetSupply1,
}

// NetTypeFromKeyword maps a source keyword such as "wire" to its NetType.
func NetTypeFromKeyword(kw string) (NetType, bool) {
	nt, ok := netTypeKeywords[kw]
	return nt, ok
}

// dataTypeKeywords maps source keywords to DataType values.
var dataTypeKeywords = map[string]DataType{
	"logic":     TypeLogic,
	"reg":       TypeReg,
	"bit":       TypeBit,
	"byte":      TypeByte,
	"integer":   TypeInteger,
	"int":       TypeInt,
	"shortint":  TypeShortint,
	"longint":   TypeLongint,
	"time":      TypeTime,
	"real":      TypeReal,
	"shortreal": TypeShortreal,
	"realtime":  TypeRealtime,
	"string":    TypeString,
	"enum":      TypeEnum,
	"struct":    TypeStruct,
	"union":     TypeUnion,
}

// DataTypeFromKeyword maps a source keyword such as "logic" to its DataType.
func DataTypeFromKeyword(kw string) (DataType, bool) {
	dt, ok := dataTypeKeywords[kw]
	return dt, ok
}

// FixedWidth returns the bit width of types whose width the language fixes,
// and false for vector or non-integral types.
func (t DataType) FixedWidth() (uint64, bool) {
	switch t {
	case TypeBit:
		return 1, true
	case TypeByte:
		return 8, true
	case TypeShortint:
		return 16, true
	case TypeInteger, TypeInt, TypeShortreal:
		return 32, true
	case TypeLongint, TypeTime, TypeReal, TypeRealtime:
		return 64, true
	}
	return 0, false
}

// DefaultSigned reports whether the type is signed when the source omits
// signedness (the 2-state/4-state atom types default signed, vectors
// default unsigned).
func (t DataType) DefaultSigned() bool {
	switch t {
	case TypeByte, TypeShortint, TypeInt, TypeLongint, TypeInteger:
		return true
	}
	return false
}

// HasSignedness reports whether signedness applies to the type at all.
func (t DataType) HasSignedness() bool {
	switch t {
	case TypeClass, TypeString, TypeReal, TypeTime, TypeRealtime, TypeShortreal:
		return false
	}
	return true
}
