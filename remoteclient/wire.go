package remoteclient

import (
	"math"
	"strconv"
)

// changedDatesWire mirrors GetChangedDatesForPartner/v1's JSON envelope.
type changedDatesWire struct {
	Response struct {
		Dates               []string     `json:"dates"`
		ResultHighwatermark *interface{} `json:"result_highwatermark"`
	} `json:"response"`
}

// detailedSalesWire mirrors GetDetailedSales/v1's JSON envelope. Money
// fields arrive as decimal strings and are converted to cents below.
type detailedSalesWire struct {
	Response struct {
		Results              []saleItemWire  `json:"results"`
		MaxID                interface{}     `json:"max_id"`
		AppInfo              []refEntryWire  `json:"app_info"`
		PackageInfo          []refEntryWire  `json:"package_info"`
		BundleInfo           []refEntryWire  `json:"bundle_info"`
		PartnerInfo          []refEntryWire  `json:"partner_info"`
		CountryInfo          []countryWire   `json:"country_info"`
		GameItemInfo         []refEntryWire  `json:"game_item_info"`
		CombinedDiscountInfo []discountWire  `json:"combined_discount_info"`
	} `json:"response"`
}

type refEntryWire struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type countryWire struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

type discountWire struct {
	ID         int64 `json:"id"`
	Name       string `json:"name"`
	Percentage *int  `json:"percentage"`
}

type saleItemWire struct {
	LineItemType        string  `json:"line_item_type"`
	AppID               *int64  `json:"app_id"`
	PackageID           *int64  `json:"package_id"`
	BundleID            *int64  `json:"bundle_id"`
	PartnerID           *int64  `json:"partner_id"`
	GameItemID          *int64  `json:"game_item_id"`
	CountryCode         *string `json:"country_code"`
	Platform            *string `json:"platform"`
	Currency            *string `json:"currency"`
	BasePrice           *string `json:"base_price"`
	SalePrice           *string `json:"sale_price"`
	AvgSalePriceUSD     string  `json:"avg_sale_price_usd"`
	GrossSalesUSD       string  `json:"gross_sales_usd"`
	GrossReturnsUSD     string  `json:"gross_returns_usd"`
	NetSalesUSD         string  `json:"net_sales_usd"`
	NetTaxUSD           string  `json:"net_tax_usd"`
	GrossUnitsSold      int64   `json:"gross_units_sold"`
	GrossUnitsReturned  int64   `json:"gross_units_returned"`
	GrossUnitsActivated int64   `json:"gross_units_activated"`
	NetUnitsSold        int64   `json:"net_units_sold"`
	DiscountID          *int64  `json:"discount_id"`
	DiscountPercentage  *int    `json:"discount_percentage"`
}

func (w *detailedSalesWire) toPage() *SalesPage {
	p := &SalesPage{
		MaxID: maxIDString(w.Response.MaxID),
	}
	for _, r := range w.Response.Results {
		p.Results = append(p.Results, r.toSaleItem())
	}
	for _, r := range w.Response.AppInfo {
		p.AppInfo = append(p.AppInfo, RefEntry(r))
	}
	for _, r := range w.Response.PackageInfo {
		p.PackageInfo = append(p.PackageInfo, RefEntry(r))
	}
	for _, r := range w.Response.BundleInfo {
		p.BundleInfo = append(p.BundleInfo, RefEntry(r))
	}
	for _, r := range w.Response.PartnerInfo {
		p.PartnerInfo = append(p.PartnerInfo, RefEntry(r))
	}
	for _, r := range w.Response.GameItemInfo {
		p.GameItemInfo = append(p.GameItemInfo, RefEntry(r))
	}
	for _, r := range w.Response.CountryInfo {
		p.CountryInfo = append(p.CountryInfo, CountryRef(r))
	}
	for _, r := range w.Response.CombinedDiscountInfo {
		p.CombinedDiscountInfo = append(p.CombinedDiscountInfo, DiscountRef{ID: r.ID, Name: r.Name, Percentage: r.Percentage})
	}
	return p
}

func (w saleItemWire) toSaleItem() SaleItem {
	return SaleItem{
		LineItemType:         w.LineItemType,
		AppID:                w.AppID,
		PackageID:            w.PackageID,
		BundleID:             w.BundleID,
		PartnerID:            w.PartnerID,
		GameItemID:           w.GameItemID,
		CountryCode:          w.CountryCode,
		Platform:             w.Platform,
		Currency:             w.Currency,
		BasePriceCents:       priceCents(w.BasePrice),
		SalePriceCents:       priceCents(w.SalePrice),
		AvgSalePriceUSDCents: revenueCents(w.AvgSalePriceUSD),
		GrossSalesUSDCents:   revenueCents(w.GrossSalesUSD),
		GrossReturnsUSDCents: revenueCents(w.GrossReturnsUSD),
		NetSalesUSDCents:     revenueCents(w.NetSalesUSD),
		NetTaxUSDCents:       revenueCents(w.NetTaxUSD),
		GrossUnitsSold:       w.GrossUnitsSold,
		GrossUnitsReturned:   w.GrossUnitsReturned,
		GrossUnitsActivated:  w.GrossUnitsActivated,
		NetUnitsSold:         w.NetUnitsSold,
		DiscountID:           w.DiscountID,
		DiscountPercentage:   w.DiscountPercentage,
	}
}

// revenueCents parses a decimal string into integer cents; an
// unparseable value becomes zero — revenue always participates in sums.
func revenueCents(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

// priceCents parses a decimal string into integer cents; an
// unparseable or absent value stays nil, preserving the
// "unknown" vs "zero" distinction for later aggregation.
func priceCents(s *string) *int64 {
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return nil
	}
	c := int64(math.Round(f * 100))
	return &c
}

func maxIDString(v interface{}) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return "0"
	}
}
