package nfe

import "encoding/xml"

// Namespace is the fixed NF-e namespace URI. Elements outside it are not
// recognised as line items.
const Namespace = "http://www.portalfiscal.inf.br/nfe"

// envelope accepts either a bare <NFe> root or the processed <nfeProc>
// wrapper emitted by SEFAZ.
type envelope struct {
	XMLName xml.Name
	InfNFe  infNFe `xml:"http://www.portalfiscal.inf.br/nfe infNFe"`
	NFe     struct {
		InfNFe infNFe `xml:"http://www.portalfiscal.inf.br/nfe infNFe"`
	} `xml:"http://www.portalfiscal.inf.br/nfe NFe"`
}

func (e envelope) infNFe() infNFe {
	if len(e.InfNFe.Det) > 0 || e.InfNFe.ID != "" {
		return e.InfNFe
	}
	return e.NFe.InfNFe
}

type infNFe struct {
	ID   string   `xml:"Id,attr"`
	Ide  ideXML   `xml:"http://www.portalfiscal.inf.br/nfe ide"`
	Emit emitXML  `xml:"http://www.portalfiscal.inf.br/nfe emit"`
	Det  []detXML `xml:"http://www.portalfiscal.inf.br/nfe det"`
}

type ideXML struct {
	NNF string `xml:"http://www.portalfiscal.inf.br/nfe nNF"`
}

type emitXML struct {
	XNome string `xml:"http://www.portalfiscal.inf.br/nfe xNome"`
}

// detXML is one line-item node. VDesc sits directly under det; prod carries
// the descriptive and quantitative fields.
type detXML struct {
	Prod    *prodXML   `xml:"http://www.portalfiscal.inf.br/nfe prod"`
	VDesc   string     `xml:"http://www.portalfiscal.inf.br/nfe vDesc"`
	Imposto impostoXML `xml:"http://www.portalfiscal.inf.br/nfe imposto"`
}

type prodXML struct {
	CProd  string `xml:"http://www.portalfiscal.inf.br/nfe cProd"`
	CEAN   string `xml:"http://www.portalfiscal.inf.br/nfe cEAN"`
	XProd  string `xml:"http://www.portalfiscal.inf.br/nfe xProd"`
	NCM    string `xml:"http://www.portalfiscal.inf.br/nfe NCM"`
	CFOP   string `xml:"http://www.portalfiscal.inf.br/nfe CFOP"`
	UCom   string `xml:"http://www.portalfiscal.inf.br/nfe uCom"`
	QCom   string `xml:"http://www.portalfiscal.inf.br/nfe qCom"`
	VUnCom string `xml:"http://www.portalfiscal.inf.br/nfe vUnCom"`
	VProd  string `xml:"http://www.portalfiscal.inf.br/nfe vProd"`
}

type impostoXML struct {
	ICMS icmsXML `xml:"http://www.portalfiscal.inf.br/nfe ICMS"`
}

// icmsXML mirrors the regime-specific ICMS groups. Only the status code and
// origin are read; which group is populated depends on the tax regime.
type icmsXML struct {
	ICMS00 *icmsGroupXML `xml:"http://www.portalfiscal.inf.br/nfe ICMS00"`
	ICMS10 *icmsGroupXML `xml:"http://www.portalfiscal.inf.br/nfe ICMS10"`
	ICMS20 *icmsGroupXML `xml:"http://www.portalfiscal.inf.br/nfe ICMS20"`
	ICMS30 *icmsGroupXML `xml:"http://www.portalfiscal.inf.br/nfe ICMS30"`
	ICMS40 *icmsGroupXML `xml:"http://www.portalfiscal.inf.br/nfe ICMS40"`
	ICMS51 *icmsGroupXML `xml:"http://www.portalfiscal.inf.br/nfe ICMS51"`
	ICMS60 *icmsGroupXML `xml:"http://www.portalfiscal.inf.br/nfe ICMS60"`
	ICMS70 *icmsGroupXML `xml:"http://www.portalfiscal.inf.br/nfe ICMS70"`
	ICMS90 *icmsGroupXML `xml:"http://www.portalfiscal.inf.br/nfe ICMS90"`
	ICMSSN *icmsSNXML    `xml:"http://www.portalfiscal.inf.br/nfe ICMSSN"`
}

type icmsGroupXML struct {
	Orig string `xml:"http://www.portalfiscal.inf.br/nfe orig"`
	CST  string `xml:"http://www.portalfiscal.inf.br/nfe CST"`
}

type icmsSNXML struct {
	Orig  string `xml:"http://www.portalfiscal.inf.br/nfe orig"`
	CSOSN string `xml:"http://www.portalfiscal.inf.br/nfe CSOSN"`
}

// classification returns the status code and origin of the first populated
// regime group, trying the standard groups in fixed order before the
// Simples Nacional node. Both values are empty when no group is present.
func (i icmsXML) classification() (cst, origin string) {
	groups := []*icmsGroupXML{
		i.ICMS00, i.ICMS10, i.ICMS20, i.ICMS30, i.ICMS40,
		i.ICMS51, i.ICMS60, i.ICMS70, i.ICMS90,
	}
	for _, g := range groups {
		if g != nil {
			return g.CST, g.Orig
		}
	}
	if i.ICMSSN != nil {
		return i.ICMSSN.CSOSN, i.ICMSSN.Orig
	}
	return "", ""
}
