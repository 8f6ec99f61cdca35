package enums

type ProductCategory string

const (
	ProductCategoryBurialPlot  ProductCategory = "burial_plot"
	ProductCategoryService     ProductCategory = "service"
	ProductCategoryMerchandise ProductCategory = "merchandise"
)
