package invoice

import "html/template"

type templateRow struct {
	N           int
	Quantity    string
	Description string
	UnitPrice   string
	Tax         string
	Total       string
}

type templateData struct {
	Issuer        Issuer
	Receiver      Receiver
	Authorization string
	IssuedAt      string
	Rows          []templateRow
	TotalTax      string
	Total         string
}

var pageTemplate = template.Must(template.New("invoice").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<title>Invoice {{.Authorization}}</title>
<style>
body{font-family:Arial,Helvetica,sans-serif;color:#111827;}
.wrap{width:900px;margin:18px auto;}
.sheet{border:1px solid #d1d5db;padding:18px;}
.title{text-align:center;color:#0b5ed7;font-weight:800;font-size:18px;margin:2px 0 12px;}
.row{display:flex;gap:14px;}
.col{flex:1;font-size:12px;line-height:1.35;}
.issuer{color:#0b5ed7;font-weight:700;}
.right{text-align:right;}
table{width:100%;border-collapse:collapse;font-size:12px;margin-top:12px;}
th,td{border:1px solid #d1d5db;padding:8px;}
th{background:#f3f4f6;}
.c{text-align:center;}
.r{text-align:right;}
.totals{width:320px;margin-left:auto;margin-top:10px;border:1px solid #d1d5db;font-size:12px;}
.totals div{display:flex;justify-content:space-between;padding:8px 10px;}
@media print{.actions{display:none;}.wrap{width:auto;margin:0;}.sheet{border:0;padding:0;}}
</style>
</head>
<body>
<div class="wrap">
  <div class="actions"><button onclick="window.print()">Print</button></div>
  <div class="sheet">
    <div class="title">Invoice</div>
    <div class="row">
      <div class="col issuer">
        {{.Issuer.Name}}<br/>
        Issuer tax id: {{.Issuer.TaxID}}<br/>
        {{.Issuer.TradeName}}{{range .Issuer.AddressLines}}<br/>
        {{.}}{{end}}
      </div>
      <div class="col right">
        <b>AUTHORIZATION NUMBER:</b><br/>
        <b>{{.Authorization}}</b><br/>
        Series: {{.Issuer.Series}} &nbsp; DTE number: {{.Issuer.DTENumber}}
      </div>
    </div>
    <div class="row">
      <div class="col"><b>Receiver tax id:</b> {{.Receiver.TaxID}}<br/><b>Receiver:</b> {{.Receiver.Name}} {{.Receiver.Surname}}</div>
      <div class="col right"><b>Issued at:</b> {{.IssuedAt}}<br/><b>Currency:</b> {{.Issuer.Currency}}</div>
    </div>
    <table>
      <thead>
        <tr><th class="c">#</th><th class="c">Type</th><th class="c">Quantity</th><th>Description</th><th class="r">Unit price</th><th class="r">Tax</th><th class="r">Total</th></tr>
      </thead>
      <tbody>
        {{range .Rows}}<tr><td class="c">{{.N}}</td><td class="c">Service</td><td class="c">{{.Quantity}}</td><td>{{.Description}}</td><td class="r">{{.UnitPrice}}</td><td class="r">{{.Tax}}</td><td class="r">{{.Total}}</td></tr>
        {{end}}
      </tbody>
    </table>
    <div class="totals">
      <div><b>Total tax</b><span>{{.TotalTax}}</span></div>
      <div><b>Total</b><span>{{.Total}}</span></div>
    </div>
  </div>
</div>
</body>
</html>
`))
