package meli

// SearchResponse is a page of the seller listing endpoint.
type SearchResponse struct {
	SellerID string   `json:"seller_id"`
	Results  []string `json:"results"`
	Paging   Paging   `json:"paging"`
}

// Paging describes the window of a listing page.
type Paging struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// Item is the subset of the item endpoint the harvester consumes.
type Item struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Price              *float64        `json:"price"`
	CurrencyID         string          `json:"currency_id"`
	OriginalPrice      *float64        `json:"original_price"`
	Status             string          `json:"status"`
	Condition          string          `json:"condition"`
	AvailableQuantity  int             `json:"available_quantity"`
	SoldQuantity       int             `json:"sold_quantity"`
	Permalink          string          `json:"permalink"`
	Thumbnail          string          `json:"thumbnail"`
	Pictures           []Picture       `json:"pictures"`
	CategoryID         string          `json:"category_id"`
	ListingTypeID      string          `json:"listing_type_id"`
	DateCreated        string          `json:"date_created"`
	LastUpdated        string          `json:"last_updated"`
	Shipping           *Shipping       `json:"shipping,omitempty"`
	SellerAddress      *SellerAddress  `json:"seller_address,omitempty"`
	Attributes         []ItemAttribute `json:"attributes"`
	Warranty           *string         `json:"warranty"`
	AcceptsMercadoPago bool            `json:"accepts_mercadopago"`
}

// Picture is one gallery image.
type Picture struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Shipping holds the shipping flags of an item.
type Shipping struct {
	FreeShipping bool             `json:"free_shipping"`
	Methods      []ShippingMethod `json:"methods"`
}

// ShippingMethod is a named shipping option.
type ShippingMethod struct {
	Name string `json:"name"`
}

// SellerAddress is the seller location attached to an item.
type SellerAddress struct {
	City    *NamedRef `json:"city"`
	State   *NamedRef `json:"state"`
	Country *NamedRef `json:"country"`
}

// NamedRef is an {id, name} reference.
type NamedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ItemAttribute is one raw item attribute.
type ItemAttribute struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	ValueName *string `json:"value_name"`
	ValueID   *string `json:"value_id"`
}

// Description is the body of the item description endpoint.
type Description struct {
	PlainText string `json:"plain_text"`
	Text      string `json:"text"`
}
