package printing

// DispensationTemplateName is the name of the built-in dispensation document
const DispensationTemplateName = "dispensation"

const dispensationTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Dispensation {{.OrderID}}</title>
<style>
body { font-family: Arial, Helvetica, sans-serif; font-size: 11px; color: #222; }
h1 { font-size: 16px; margin: 0 0 6px 0; }
table { width: 100%; border-collapse: collapse; margin-top: 10px; }
th, td { border: 1px solid #999; padding: 3px 5px; }
th { background: #eee; text-align: left; }
td.num { text-align: right; }
.banner { padding: 6px; margin-top: 8px; border: 1px solid; }
.banner.warning { border-color: #c90; background: #fff6d9; }
.banner.error { border-color: #c00; background: #fde0e0; }
</style>
</head>
<body>
<h1>Dispensation {{.OrderID}}</h1>
<div>Product: {{.ProductMaterialID}}{{if .OrderQuantity}} &middot; Quantity: {{formatQty .OrderQuantity}}{{end}}</div>
<div>Operator: {{title .OperatorName}} &middot; Generated: {{formatDate .GeneratedAt}}</div>
{{if .Banner}}<div class="banner {{.Banner}}">{{if eq .Banner "error"}}Allocated quantities exceed the requirement. Remove lots before continuing.{{else}}Allocated quantities exceed the requirement. Continuing under supervisor privilege.{{end}}</div>{{end}}
<table>
<thead>
<tr><th>#</th><th>Material</th><th>Unit</th><th>Required</th><th>Historical</th><th>Lot</th><th>Batch</th><th>Expires</th><th>Quantity</th></tr>
</thead>
<tbody>
{{range $i, $l := .Lines}}<tr>
<td>{{add $i 1}}</td>
<td>{{$l.MaterialID}} {{$l.MaterialName}}</td>
<td>{{$l.Unit}}</td>
<td class="num">{{formatQty $l.Required}}</td>
<td class="num">{{formatQty $l.Historical}}</td>
<td>{{$l.LotID}}</td>
<td>{{$l.BatchLabel}}</td>
<td>{{formatDate $l.ExpirationDate}}</td>
<td class="num">{{formatQty $l.Quantity}}</td>
</tr>
{{else}}<tr><td colspan="9">No lots selected</td></tr>
{{end}}</tbody>
</table>
{{if .Excess}}<table>
<thead><tr><th>Over-allocated material</th><th>Required</th><th>Total</th><th>Difference</th></tr></thead>
<tbody>
{{range .Excess}}<tr><td>{{.MaterialID}} {{.MaterialName}}</td><td class="num">{{formatQty .Required}}</td><td class="num">{{formatQty .Total}}</td><td class="num">{{formatQty .Difference}}</td></tr>
{{end}}</tbody>
</table>{{end}}
</body>
</html>
`
