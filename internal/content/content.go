package content

import (
	"github.com/shopspring/decimal"

	"paineluriel/backend/internal/domain"
)

// DefaultProductName is used when a checkout is opened without a
// resolvable cart descriptor.
const DefaultProductName = "Painel do Uriel"

// Catalog is the static product catalog of the storefront. Prices are
// authoritative here; carts never trust client-sent prices.
type Catalog struct {
	products []domain.Product
	byID     map[string]domain.Product
}

func NewCatalog() *Catalog {
	products := []domain.Product{
		{
			ID:            "painel-android",
			Name:          "Painel Uriel - Android",
			Price:         decimal.RequireFromString("12.90"),
			OriginalPrice: decimal.RequireFromString("79.90"),
			Image:         "https://i.ibb.co/vMG8xRc/Natal-android.jpg",
			Features: []string{
				"Compativel com todos Android",
				"Atualizacoes automaticas",
				"Suporte 24/7",
				"Funcionalidades exclusivas",
				"Anti-ban integrado",
			},
			Badge: "Mais Vendido",
		},
		{
			ID:            "painel-iphone",
			Name:          "Painel Uriel - iPhone",
			Price:         decimal.RequireFromString("19.90"),
			OriginalPrice: decimal.RequireFromString("89.90"),
			Image:         "https://i.ibb.co/nN1Rcsx0/Natal-iphone-rage.jpg",
			Features: []string{
				"Compativel com todos iPhone",
				"Atualizacoes automaticas",
				"Suporte 24/7",
				"Funcionalidades premium",
				"Anti-ban integrado",
			},
			Badge: "Exclusivo",
		},
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &Catalog{products: products, byID: byID}
}

func (c *Catalog) Products() []domain.Product {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}

func (c *Catalog) Product(id string) (domain.Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

func FAQ() []domain.FAQEntry {
	return []domain.FAQEntry{
		{
			Question: "O que e o Painel do Uriel?",
			Answer:   "O Painel do Uriel e a ferramenta mais completa e poderosa do mercado, desenvolvida para oferecer funcionalidades exclusivas com atualizacoes constantes e suporte dedicado para Android e iPhone.",
		},
		{
			Question: "Como recebo o produto apos a compra?",
			Answer:   "Apos a confirmacao do pagamento, voce recebera imediatamente o acesso ao painel por email, com todas as instrucoes de instalacao e ativacao.",
		},
		{
			Question: "O painel funciona em qualquer dispositivo?",
			Answer:   "Sim! Temos versoes dedicadas para Android e iPhone. Basta escolher a versao compativel com o seu dispositivo no momento da compra.",
		},
		{
			Question: "O pagamento via Pix e seguro?",
			Answer:   "Totalmente seguro! O pagamento via Pix e processado de forma instantanea e criptografada, garantindo total seguranca na sua transacao.",
		},
		{
			Question: "Posso usar cupom de desconto?",
			Answer:   "Sim! Aceitamos cupons de desconto. Basta inserir o codigo no carrinho de compras antes de finalizar o pedido para o desconto ser aplicado automaticamente.",
		},
		{
			Question: "O painel recebe atualizacoes?",
			Answer:   "Sim! O Painel do Uriel recebe atualizacoes constantes e automaticas, garantindo que voce sempre tenha acesso as funcionalidades mais recentes.",
		},
	}
}

func Reviews() []domain.Review {
	return []domain.Review{
		{Name: "Lucas S.", Avatar: "https://randomuser.me/api/portraits/men/32.jpg", Rating: 5, Date: "3 dias atras", Verified: true, Text: "Comprei e em poucos minutos ja estava tudo funcionando. No meu Android rodou liso.", Helpful: 24},
		{Name: "Gabriel M.", Avatar: "https://randomuser.me/api/portraits/men/45.jpg", Rating: 5, Date: "1 semana atras", Verified: true, Text: "Interface bonita, simples e muito bem organizada. Da pra ver que foi bem feito.", Helpful: 38},
		{Name: "Pedro H.", Avatar: "https://randomuser.me/api/portraits/men/18.jpg", Rating: 5, Date: "2 semanas atras", Verified: true, Text: "No iPhone funcionou certinho. Tudo rapido e sem bugs.", Helpful: 15},
		{Name: "Rafael C.", Avatar: "https://randomuser.me/api/portraits/men/61.jpg", Rating: 4, Date: "3 semanas atras", Verified: true, Text: "Entrega muito pelo preco. Funcionamento excelente.", Helpful: 42},
	}
}

func Influencers() []domain.Influencer {
	return []domain.Influencer{
		{Name: "JordanX", Image: "https://i.ibb.co/wZJDXSsx/jordan-X.jpg", Role: "Content Creator", Followers: "500K+", Quote: "O Painel do Uriel e simplesmente o melhor que ja usei. Recomendo de olhos fechados!"},
		{Name: "Marechal", Image: "https://i.ibb.co/Q70V5Vg1/marechal.jpg", Role: "Pro Player", Followers: "1M+", Quote: "Desde que comecei a usar, meu desempenho mudou completamente. Indispensavel!"},
		{Name: "Fantasma FF", Image: "https://i.ibb.co/W4pwrhVn/fantasmaff.jpg", Role: "Streamer", Followers: "800K+", Quote: "Qualidade premium por um preco acessivel. O suporte tambem e incrivel!"},
	}
}
