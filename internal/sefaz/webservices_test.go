package sefaz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveDefaultTable(t *testing.T) {
	ws, err := DefaultWebservices()
	require.NoError(t, err)
	require.Equal(t, "58", ws.Model)

	ep, err := ws.Resolve(ServiceStatusServico, "mg", "2", "58")
	require.NoError(t, err)
	require.Equal(t, ServiceStatusServico, ep.Service)
	require.Equal(t, "https://mdfe-homologacao.svrs.rs.gov.br/ws/MDFeStatusServico/MDFeStatusServico.asmx", ep.URL)
	require.Equal(t, "3.00", ep.Version)
	require.Equal(t, "http://www.portalfiscal.inf.br/mdfe/wsdl/MDFeStatusServico", ep.Namespace())
	require.Equal(t, "http://www.portalfiscal.inf.br/mdfe/wsdl/MDFeStatusServico/mdfeStatusServicoMDF", ep.Action())

	// every state is served by the same authorizer
	other, err := ws.Resolve(ServiceStatusServico, "RS", "homologacao", "")
	require.NoError(t, err)
	require.Equal(t, ep.URL, other.URL)

	prod, err := ws.Resolve(ServiceRecepcao, "SP", "1", "58")
	require.NoError(t, err)
	require.Equal(t, "https://mdfe.svrs.rs.gov.br/ws/MDFeRecepcao/MDFeRecepcao.asmx", prod.URL)
	require.Equal(t, "mdfeRecepcaoLote", prod.Method)
}

func TestResolveFailures(t *testing.T) {
	ws, err := DefaultWebservices()
	require.NoError(t, err)

	_, err = ws.Resolve("MDFeRecepcaoSinc", "MG", "1", "58")
	require.ErrorIs(t, err, ErrServiceNotFound)

	_, err = ws.Resolve(ServiceConsulta, "MG", "1", "55")
	require.ErrorIs(t, err, ErrServiceNotFound)

	_, err = ws.Resolve(ServiceConsulta, "MG", "3", "58")
	require.Error(t, err)
}

func TestLoadWebservicesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ws.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "3.00"
authorizers:
  default: SVRS
  MG: MG
services:
  MG:
    producao:
      MDFeConsulta:
        url: https://mdfe.example.mg.gov.br/consulta
        method: mdfeConsultaMDF
        version: "3.00"
`), 0o644))

	ws, err := LoadWebservices(path)
	require.NoError(t, err)
	require.Equal(t, "58", ws.Model)

	ep, err := ws.Resolve(ServiceConsulta, "MG", "1", "")
	require.NoError(t, err)
	require.Equal(t, "https://mdfe.example.mg.gov.br/consulta", ep.URL)
	require.Equal(t, ServiceConsulta, ep.Operation)

	_, err = ws.Resolve(ServiceConsulta, "SP", "1", "")
	require.ErrorIs(t, err, ErrServiceNotFound)

	_, err = ParseWebservices([]byte("version: \"3.00\"\n"))
	require.Error(t, err)
}

func TestUFCodes(t *testing.T) {
	code, err := CodeOfUF(" mg ")
	require.NoError(t, err)
	require.Equal(t, "31", code)

	uf, err := UFOfCode("43")
	require.NoError(t, err)
	require.Equal(t, "RS", uf)

	_, err = CodeOfUF("XX")
	require.Error(t, err)
	_, err = UFOfCode("99")
	require.Error(t, err)
}
