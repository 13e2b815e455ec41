package registration

import (
	"time"

	"github.com/ddr4869/agrichain/common/types"
)

// Apply copies the merged values onto the product
func (r *Result) Apply(p *types.Product) {
	for name, v := range r.Values {
		switch x := v.(type) {
		case string:
			applyText(p, name, x)
		case float64:
			applyNumber(p, name, x)
		case time.Time:
			applyDate(p, name, x)
		case []string:
			if name == FieldCertifications {
				p.Certifications = x
			}
		}
	}
}

func applyText(p *types.Product, name, v string) {
	switch name {
	case FieldName:
		p.Name = v
	case FieldCategory:
		p.Category = v
	case FieldDescription:
		p.Description = v
	case FieldUnit:
		p.Unit = v
	case FieldFarmName:
		p.FarmName = v
	case FieldLocation:
		p.Location = v
	case FieldDistributorName:
		p.DistributorName = v
	case FieldWarehouseLocation:
		p.WarehouseLocation = v
	case FieldStoreName:
		p.StoreName = v
	case FieldStoreLocation:
		p.StoreLocation = v
	case FieldPaymentProofURL:
		p.PaymentProofURL = v
	}
}

func applyNumber(p *types.Product, name string, v float64) {
	switch name {
	case FieldQuantity:
		p.Quantity = v
	case FieldPrice:
		price := v
		p.Price = &price
	}
}

func applyDate(p *types.Product, name string, v time.Time) {
	t := v
	switch name {
	case FieldHarvestDate:
		p.HarvestDate = &t
	case FieldDispatchDate:
		p.DispatchDate = &t
	case FieldArrivalDate:
		p.ArrivalDate = &t
	}
}
