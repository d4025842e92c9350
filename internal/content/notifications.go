package content

import (
	"math/rand"
	"sync"

	"paineluriel/backend/internal/domain"
)

var notificationNames = []string{
	"Lucas", "Gabriel", "Pedro", "Rafael", "Mateus",
	"Felipe", "Gustavo", "Bruno", "Leonardo", "Diego",
	"Joao", "Arthur", "Henrique", "Vitor", "Enzo",
	"Thiago", "Caio", "Guilherme", "Bernardo", "Nicolas",
	"Miguel", "Daniel", "Igor", "Samuel", "Eduardo",
}

var notificationLocations = []string{
	"Sao Paulo, SP", "Rio de Janeiro, RJ", "Belo Horizonte, MG",
	"Curitiba, PR", "Porto Alegre, RS", "Salvador, BA",
	"Brasilia, DF", "Fortaleza, CE", "Recife, PE",
	"Manaus, AM", "Goiania, GO", "Campinas, SP",
	"Florianopolis, SC", "Vitoria, ES", "Natal, RN",
	"Campo Grande, MS", "Macae, RJ", "Uberlandia, MG",
}

// NotificationFeed produces randomized purchase notifications for the
// storefront ticker. Entirely synthetic: it never reflects real sales.
type NotificationFeed struct {
	mu       sync.Mutex
	rng      *rand.Rand
	products []string
}

func NewNotificationFeed(catalog *Catalog, seed int64) *NotificationFeed {
	products := make([]string, 0, 2)
	for _, p := range catalog.Products() {
		products = append(products, p.Name)
	}
	if len(products) == 0 {
		products = []string{DefaultProductName}
	}
	return &NotificationFeed{
		rng:      rand.New(rand.NewSource(seed)),
		products: products,
	}
}

func (f *NotificationFeed) Next() domain.PurchaseNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.PurchaseNotification{
		Name:     notificationNames[f.rng.Intn(len(notificationNames))],
		Product:  f.products[f.rng.Intn(len(f.products))],
		Location: notificationLocations[f.rng.Intn(len(notificationLocations))],
	}
}
