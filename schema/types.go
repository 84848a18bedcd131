package schema

// DataType is the storage kind of a column, expressed in the schema-builder
// vocabulary the migration renderers understand.
type DataType string

const (
	TypeIncrements    DataType = "increments"
	TypeBigIncrements DataType = "bigIncrements"
	TypeBoolean       DataType = "boolean"
	TypeTinyInteger   DataType = "tinyInteger"
	TypeSmallInteger  DataType = "smallInteger"
	TypeInteger       DataType = "integer"
	TypeMediumInteger DataType = "mediumInteger"
	TypeBigInteger    DataType = "bigInteger"
	TypeDecimal       DataType = "decimal"
	TypeFloat         DataType = "float"
	TypeDouble        DataType = "double"
	TypeChar          DataType = "char"
	TypeString        DataType = "string"
	TypeText          DataType = "text"
	TypeMediumText    DataType = "mediumText"
	TypeLongText      DataType = "longText"
	TypeEnum          DataType = "enum"
	TypeJSON          DataType = "json"
	TypeUUID          DataType = "uuid"
	TypeDate          DataType = "date"
	TypeDateTime      DataType = "dateTime"
	TypeTime          DataType = "time"
	TypeTimestamp     DataType = "timestamp"
	TypeYear          DataType = "year"
	TypeBinary        DataType = "binary"
)

// Family groups data types that share a storage representation. Column
// changes are only representable inside a family (plus the conversions
// allowed by CanChange).
type Family string

const (
	FamilyInteger  Family = "integer"
	FamilyNumeric  Family = "numeric"
	FamilyText     Family = "text"
	FamilyTemporal Family = "temporal"
	FamilyBinary   Family = "binary"
)

var families = map[DataType]Family{
	TypeIncrements:    FamilyInteger,
	TypeBigIncrements: FamilyInteger,
	TypeBoolean:       FamilyInteger,
	TypeTinyInteger:   FamilyInteger,
	TypeSmallInteger:  FamilyInteger,
	TypeInteger:       FamilyInteger,
	TypeMediumInteger: FamilyInteger,
	TypeBigInteger:    FamilyInteger,
	TypeDecimal:       FamilyNumeric,
	TypeFloat:         FamilyNumeric,
	TypeDouble:        FamilyNumeric,
	TypeChar:          FamilyText,
	TypeString:        FamilyText,
	TypeText:          FamilyText,
	TypeMediumText:    FamilyText,
	TypeLongText:      FamilyText,
	TypeEnum:          FamilyText,
	TypeJSON:          FamilyText,
	TypeUUID:          FamilyText,
	TypeDate:          FamilyTemporal,
	TypeDateTime:      FamilyTemporal,
	TypeTime:          FamilyTemporal,
	TypeTimestamp:     FamilyTemporal,
	TypeYear:          FamilyTemporal,
	TypeBinary:        FamilyBinary,
}

// Valid reports whether t is a known data type.
func (t DataType) Valid() bool {
	_, ok := families[t]
	return ok
}

// Family returns the storage family of t, or "" for unknown types.
func (t DataType) Family() Family {
	return families[t]
}

// AutoIncrement reports whether t declares an auto-incrementing primary key.
func (t DataType) AutoIncrement() bool {
	return t == TypeIncrements || t == TypeBigIncrements
}

// CanChange reports whether a column of type from can be altered in place
// to type to. Integer columns may widen into numeric ones; everything else
// must stay inside its family.
func CanChange(from, to DataType) bool {
	if from == to {
		return true
	}
	ff, tf := from.Family(), to.Family()
	if ff == "" || tf == "" {
		return false
	}
	if ff == tf {
		return true
	}
	return ff == FamilyInteger && tf == FamilyNumeric
}

// KnownTypes returns every supported data type in declaration order.
func KnownTypes() []DataType {
	return []DataType{
		TypeIncrements, TypeBigIncrements, TypeBoolean, TypeTinyInteger,
		TypeSmallInteger, TypeInteger, TypeMediumInteger, TypeBigInteger,
		TypeDecimal, TypeFloat, TypeDouble, TypeChar, TypeString, TypeText,
		TypeMediumText, TypeLongText, TypeEnum, TypeJSON, TypeUUID, TypeDate,
		TypeDateTime, TypeTime, TypeTimestamp, TypeYear, TypeBinary,
	}
}

// IndexType is the kind of a table index.
type IndexType string

const (
	IndexPlain   IndexType = "index"
	IndexUnique  IndexType = "unique"
	IndexPrimary IndexType = "primary"
)

// Valid reports whether t is a known index type.
func (t IndexType) Valid() bool {
	switch t {
	case IndexPlain, IndexUnique, IndexPrimary:
		return true
	}
	return false
}
