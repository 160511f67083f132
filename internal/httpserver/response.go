package httpserver

import (
	sessioncart "shopcart/internal/cart"
	"shopcart/internal/domain"
)

type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type productResponse struct {
	ID          string `json:"id"`
	CategoryID  string `json:"categoryId,omitempty"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price"`
	Discount    string `json:"discount"`
	SellPrice   string `json:"sellPrice"`
	Available   bool   `json:"available"`
}

type cartItemResponse struct {
	Product    productResponse `json:"product"`
	Quantity   int             `json:"quantity"`
	UnitPrice  string          `json:"unitPrice"`
	SellPrice  string          `json:"sellPrice"`
	TotalPrice string          `json:"totalPrice"`
}

type cartResponse struct {
	Items         []cartItemResponse `json:"items"`
	TotalQuantity int                `json:"totalQuantity"`
	TotalPrice    string             `json:"totalPrice"`
	StaleLines    int                `json:"staleLines,omitempty"`
}

func toCategoryResponse(c domain.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Slug: c.Slug}
}

func toCategoryResponses(categories []domain.Category) []categoryResponse {
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryResponse(c))
	}
	return out
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Price:       sessioncart.FormatPrice(p.Price),
		Discount:    sessioncart.FormatPrice(p.Discount),
		SellPrice:   sessioncart.FormatPrice(p.SellPrice()),
		Available:   p.Available,
	}
}

func toCartResponse(s sessioncart.Summary) cartResponse {
	items := make([]cartItemResponse, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, cartItemResponse{
			Product:    toProductResponse(item.Product),
			Quantity:   item.Quantity,
			UnitPrice:  sessioncart.FormatPrice(item.UnitPrice),
			SellPrice:  sessioncart.FormatPrice(item.SellPrice),
			TotalPrice: sessioncart.FormatPrice(item.TotalPrice),
		})
	}
	return cartResponse{
		Items:         items,
		TotalQuantity: s.TotalQuantity,
		TotalPrice:    sessioncart.FormatPrice(s.TotalPrice),
		StaleLines:    s.Stale,
	}
}
