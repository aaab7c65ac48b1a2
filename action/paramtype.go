package action

// ParamTypeKind is the discriminant for ParamType, covering every type
// the names: string | integer | number | boolean | map | any |
// {list, T} | {enum, [v,...]} | {union, [T,...]} | {map, shape}.
type ParamTypeKind string

const (
	TypeString  ParamTypeKind = "string"
	TypeInteger ParamTypeKind = "integer"
	TypeNumber  ParamTypeKind = "number"
	TypeBoolean ParamTypeKind = "boolean"
	TypeMap     ParamTypeKind = "map"
	TypeAny     ParamTypeKind = "any"
	TypeList    ParamTypeKind = "list"
	TypeEnum    ParamTypeKind = "enum"
	TypeUnion   ParamTypeKind = "union"
	TypeShape   ParamTypeKind = "shape"
)

// ParamType describes one parameter's declared type, recursively for list,
// union, and shaped-map parameters.
type ParamType struct {
	Kind  ParamTypeKind
	Elem  *ParamType            // for TypeList
	Enum  []string              // for TypeEnum
	Union []ParamType           // for TypeUnion
	Shape map[string]ParamType  // for TypeShape
}

func TString() ParamType  { return ParamType{Kind: TypeString} }
func TInteger() ParamType { return ParamType{Kind: TypeInteger} }
func TNumber() ParamType  { return ParamType{Kind: TypeNumber} }
func TBoolean() ParamType { return ParamType{Kind: TypeBoolean} }
func TMap() ParamType     { return ParamType{Kind: TypeMap} }
func TAny() ParamType     { return ParamType{Kind: TypeAny} }

func TList(elem ParamType) ParamType {
	return ParamType{Kind: TypeList, Elem: &elem}
}

func TEnum(values ...string) ParamType {
	return ParamType{Kind: TypeEnum, Enum: values}
}

func TUnion(types ...ParamType) ParamType {
	return ParamType{Kind: TypeUnion, Union: types}
}

func TShape(shape map[string]ParamType) ParamType {
	return ParamType{Kind: TypeShape, Shape: shape}
}
