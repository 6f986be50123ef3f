package tenancy

import (
	"context"

	"github.com/hubportal/hub/internal/domain"
)

// TaxonomyNode is one entry of the default request-type tree.
type TaxonomyNode struct {
	Name     string
	Code     string
	Children []TaxonomyNode
}

// DefaultTaxonomy is written to a tenant whose request_types table is empty.
var DefaultTaxonomy = []TaxonomyNode{
	{Name: "Comercial", Code: "commercial", Children: []TaxonomyNode{
		{Name: "Cadastro de desconto comercial", Code: "commercial_discount_registration"},
		{Name: "Tabela de preços", Code: "commercial_price_table"},
		{Name: "Negociação com cliente", Code: "commercial_negotiation"},
	}},
	{Name: "Tecnologia", Code: "it", Children: []TaxonomyNode{
		{Name: "Acesso a sistemas", Code: "it_access"},
		{Name: "Equipamentos", Code: "it_equipment"},
		{Name: "Suporte", Code: "it_support"},
	}},
	{Name: "Financeiro", Code: "finance", Children: []TaxonomyNode{
		{Name: "Reembolso", Code: "finance_reimbursement"},
		{Name: "Pagamentos", Code: "finance_payments"},
	}},
	{Name: "Recursos Humanos", Code: "hr", Children: []TaxonomyNode{
		{Name: "Férias", Code: "hr_vacation"},
		{Name: "Documentos", Code: "hr_documents"},
	}},
	{Name: "Outros", Code: "other"},
}

// SeedTaxonomy inserts nodes only when the tenant has no request types yet.
// It reports whether anything was written.
func SeedTaxonomy(ctx context.Context, store Store, nodes []TaxonomyNode) (bool, error) {
	count, err := store.RequestTypes().Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	err = store.InTx(ctx, func(tx Store) error {
		return seedLevel(ctx, tx, nil, nodes)
	})
	return err == nil, err
}

func seedLevel(ctx context.Context, store Store, parentID *string, nodes []TaxonomyNode) error {
	for i, node := range nodes {
		code := node.Code
		rt := domain.RequestType{
			ParentID: parentID,
			Name:     node.Name,
			Code:     &code,
			Weight:   (i + 1) * 10,
			Active:   true,
		}
		if err := store.RequestTypes().Create(ctx, &rt); err != nil {
			return err
		}
		if len(node.Children) > 0 {
			id := rt.ID
			if err := seedLevel(ctx, store, &id, node.Children); err != nil {
				return err
			}
		}
	}
	return nil
}
