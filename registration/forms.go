package registration

import "github.com/ddr4869/agrichain/common/types"

// Kind picks the coercion applied to a submitted value
type Kind int

const (
	Text Kind = iota
	Number
	Date
	StringList
	URL
)

// Field names as submitted by the role registration forms
const (
	FieldName              = "name"
	FieldCategory          = "category"
	FieldDescription       = "description"
	FieldQuantity          = "quantity"
	FieldUnit              = "unit"
	FieldFarmName          = "farmName"
	FieldLocation          = "location"
	FieldHarvestDate       = "harvestDate"
	FieldDistributorName   = "distributorName"
	FieldWarehouseLocation = "warehouseLocation"
	FieldDispatchDate      = "dispatchDate"
	FieldStoreName         = "storeName"
	FieldStoreLocation     = "storeLocation"
	FieldArrivalDate       = "arrivalDate"
	FieldCertifications    = "certifications"
	FieldPrice             = "price"
	FieldPaymentProofURL   = "paymentProofUrl"
)

type Field struct {
	Name string
	Kind Kind
}

// Form is the ordered set of fields a role may register
type Form struct {
	Fields []Field
}

// Has reports whether the form accepts the field
func (f Form) Has(name string) bool {
	_, ok := f.field(name)
	return ok
}

func (f Form) field(name string) (Field, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

var commonFields = []Field{
	{FieldName, Text},
	{FieldCategory, Text},
	{FieldDescription, Text},
	{FieldQuantity, Number},
	{FieldUnit, Text},
}

func withCommon(fields ...Field) Form {
	all := make([]Field, 0, len(commonFields)+len(fields))
	all = append(all, commonFields...)
	return Form{Fields: append(all, fields...)}
}

// Forms maps each role to the fields its registration form carries
var Forms = map[types.Role]Form{
	types.RoleFarmer: withCommon(
		Field{FieldFarmName, Text},
		Field{FieldLocation, Text},
		Field{FieldHarvestDate, Date},
		Field{FieldCertifications, StringList},
		Field{FieldPrice, Number},
	),
	types.RoleDistributor: withCommon(
		Field{FieldDistributorName, Text},
		Field{FieldWarehouseLocation, Text},
		Field{FieldDispatchDate, Date},
		Field{FieldCertifications, StringList},
		Field{FieldPrice, Number},
		Field{FieldPaymentProofURL, URL},
	),
	types.RoleRetailer: withCommon(
		Field{FieldStoreName, Text},
		Field{FieldStoreLocation, Text},
		Field{FieldArrivalDate, Date},
		Field{FieldCertifications, StringList},
		Field{FieldPrice, Number},
		Field{FieldPaymentProofURL, URL},
	),
	types.RoleConsumer: {Fields: []Field{
		{FieldQuantity, Number},
		{FieldPrice, Number},
		{FieldPaymentProofURL, URL},
	}},
}

// FormFor returns the role's form; unknown roles get an empty one
func FormFor(role types.Role) Form {
	return Forms[role]
}
