package products

import (
	"testing"

	"vastra/models"
)

func TestRankBestSelling(t *testing.T) {
	catalog := []models.Product{
		{ProductID: "p1", Customers: []string{"a", "b"}},
		{ProductID: "p2"},
		{ProductID: "p3", Customers: []string{"a", "b", "c"}},
		{ProductID: "p4", Customers: []string{"a"}},
	}

	ranked := rankBestSelling(catalog, 10)
	want := []string{"p3", "p1", "p4"}
	if len(ranked) != len(want) {
		t.Fatalf("ranked = %d products, want %d (never-sold excluded)", len(ranked), len(want))
	}
	for i, id := range want {
		if ranked[i].ProductID != id {
			t.Fatalf("ranked[%d] = %s, want %s", i, ranked[i].ProductID, id)
		}
	}

	top := rankBestSelling(catalog, 2)
	if len(top) != 2 || top[0].ProductID != "p3" || top[1].ProductID != "p1" {
		t.Fatalf("top 2 = %+v, want p3,p1", top)
	}
}

func TestRankBestSellingStableForTies(t *testing.T) {
	catalog := []models.Product{
		{ProductID: "p1", Customers: []string{"a"}},
		{ProductID: "p2", Customers: []string{"b"}},
	}
	ranked := rankBestSelling(catalog, 10)
	if ranked[0].ProductID != "p1" || ranked[1].ProductID != "p2" {
		t.Fatalf("tie order = %+v, want catalog order preserved", ranked)
	}
}

func TestDiscountedPrice(t *testing.T) {
	cases := []struct {
		price    float64
		discount float64
		want     float64
	}{
		{100, 10, 90},
		{100, 0, 100},
		{100, -5, 100},
		{999, 33, 669.33},
		{49.99, 50, 25},
	}
	for _, c := range cases {
		if got := discountedPrice(c.price, c.discount); got != c.want {
			t.Errorf("discountedPrice(%.2f, %.2f) = %.2f, want %.2f", c.price, c.discount, got, c.want)
		}
	}
}

func TestProductRequestValidate(t *testing.T) {
	valid := productRequest{Name: "Kurta", Price: 100, Discount: 10, Stock: 5}
	if msg := valid.validate(); msg != "" {
		t.Fatalf("valid request rejected: %s", msg)
	}

	cases := []productRequest{
		{Price: 100},                            // no name
		{Name: "Kurta"},                         // no price
		{Name: "Kurta", Price: -1},              // negative price
		{Name: "Kurta", Price: 100, Discount: 100},
		{Name: "Kurta", Price: 100, Stock: -1},
	}
	for i, c := range cases {
		if msg := c.validate(); msg == "" {
			t.Errorf("case %d: invalid request accepted", i)
		}
	}
}
