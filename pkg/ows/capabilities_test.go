package ows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-ogc-client/pkg/ogcerr"
	"github.com/robert-malhotra/go-ogc-client/pkg/xmlutil"
)

const wmsCapabilities = `<?xml version="1.0" encoding="UTF-8"?>
<WMS_Capabilities version="1.3.0" xmlns="http://www.opengis.net/wms" xmlns:xlink="http://www.w3.org/1999/xlink">
  <Service>
    <Name>WMS</Name>
    <Title>Hydrography</Title>
    <Abstract>Rivers and lakes</Abstract>
    <KeywordList>
      <Keyword>water</Keyword>
      <Keyword>lakes</Keyword>
    </KeywordList>
  </Service>
  <Capability>
    <Request>
      <GetCapabilities><Format>text/xml</Format></GetCapabilities>
      <GetMap>
        <Format>image/png</Format>
        <Format>image/jpeg</Format>
      </GetMap>
    </Request>
    <Layer>
      <Title>Root layer</Title>
      <Layer>
        <Name>lakes</Name>
        <Title>Lakes</Title>
      </Layer>
      <Layer>
        <Name>rivers</Name>
        <Title>Rivers</Title>
        <Layer>
          <Name>rivers_major</Name>
        </Layer>
      </Layer>
    </Layer>
  </Capability>
</WMS_Capabilities>`

const wmsLegacyCapabilities = `<?xml version="1.0" encoding="ISO-8859-1"?>
<WMT_MS_Capabilities version="1.1.1">
  <Service><Title>Carte g` + "\xe9" + `ologique</Title></Service>
  <Capability>
    <Request><GetMap><Format>image/gif</Format></GetMap></Request>
    <Layer><Name>geology</Name></Layer>
  </Capability>
</WMT_MS_Capabilities>`

const wfsCapabilities = `<?xml version="1.0" encoding="UTF-8"?>
<wfs:WFS_Capabilities version="2.0.0" xmlns:wfs="http://www.opengis.net/wfs/2.0" xmlns:ows="http://www.opengis.net/ows/1.1">
  <ows:ServiceIdentification>
    <ows:Title>Buildings</ows:Title>
    <ows:Abstract>Building footprints</ows:Abstract>
    <ows:Keywords>
      <ows:Keyword>buildings</ows:Keyword>
    </ows:Keywords>
    <ows:ServiceType>WFS</ows:ServiceType>
  </ows:ServiceIdentification>
  <ows:OperationsMetadata>
    <ows:Operation name="GetCapabilities"/>
    <ows:Operation name="GetFeature">
      <ows:Parameter name="outputFormat">
        <ows:AllowedValues>
          <ows:Value>application/gml+xml; version=3.2</ows:Value>
          <ows:Value>application/json</ows:Value>
          <ows:Value>application/json</ows:Value>
        </ows:AllowedValues>
      </ows:Parameter>
      <ows:Parameter name="resultType">
        <ows:AllowedValues><ows:Value>hits</ows:Value></ows:AllowedValues>
      </ows:Parameter>
    </ows:Operation>
  </ows:OperationsMetadata>
  <wfs:FeatureTypeList>
    <wfs:FeatureType>
      <wfs:Name>ns:buildings</wfs:Name>
      <wfs:Title>Buildings</wfs:Title>
    </wfs:FeatureType>
    <wfs:FeatureType>
      <wfs:Name>ns:parcels</wfs:Name>
    </wfs:FeatureType>
  </wfs:FeatureTypeList>
</wfs:WFS_Capabilities>`

const wfsLegacyCapabilities = `<?xml version="1.0"?>
<WFS_Capabilities version="1.0.0">
  <Service><Title>Old roads</Title><Abstract>Legacy</Abstract></Service>
  <FeatureTypeList><FeatureType><Name>roads</Name></FeatureType></FeatureTypeList>
</WFS_Capabilities>`

const wmtsCapabilities = `<?xml version="1.0" encoding="UTF-8"?>
<Capabilities version="1.0.0" xmlns="http://www.opengis.net/wmts/1.0" xmlns:ows="http://www.opengis.net/ows/1.1">
  <ows:ServiceIdentification>
    <ows:Title>Basemap tiles</ows:Title>
  </ows:ServiceIdentification>
  <Contents>
    <Layer>
      <ows:Title>Orthophoto</ows:Title>
      <ows:Identifier>ortho</ows:Identifier>
      <Format>image/jpeg</Format>
    </Layer>
    <Layer>
      <ows:Title>Plan</ows:Title>
      <ows:Identifier>plan</ows:Identifier>
      <Format>image/png</Format>
      <Format>image/jpeg</Format>
    </Layer>
    <TileMatrixSet><ows:Identifier>WebMercator</ows:Identifier></TileMatrixSet>
  </Contents>
</Capabilities>`

const wmsException = `<?xml version="1.0" encoding="UTF-8"?>
<ServiceExceptionReport version="1.3.0" xmlns="http://www.opengis.net/ogc">
  <ServiceException code="LayerNotDefined" locator="layers">
    Unknown layer: roads
  </ServiceException>
</ServiceExceptionReport>`

const owsException = `<?xml version="1.0" encoding="UTF-8"?>
<ows:ExceptionReport version="2.0.0" xmlns:ows="http://www.opengis.net/ows/1.1">
  <ows:Exception exceptionCode="InvalidParameterValue" locator="version">
    <ows:ExceptionText>Version 9.9.9 is not supported</ows:ExceptionText>
    <ows:ExceptionText>Supported: 2.0.0</ows:ExceptionText>
  </ows:Exception>
</ows:ExceptionReport>`

func parseXML(t *testing.T, body string) *xmlutil.Document {
	t.Helper()
	doc, err := xmlutil.Parse([]byte(body), "")
	require.NoError(t, err)
	return doc
}

func TestParseCapabilities(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *Capabilities
	}{
		{
			name: "WMS 1.3.0",
			body: wmsCapabilities,
			want: &Capabilities{
				Service:  ServiceWMS,
				Version:  "1.3.0",
				Title:    "Hydrography",
				Abstract: "Rivers and lakes",
				Keywords: []string{"water", "lakes"},
				Layers: []LayerSummary{
					{Name: "lakes", Title: "Lakes"},
					{Name: "rivers", Title: "Rivers"},
					{Name: "rivers_major"},
				},
				OutputFormats: []string{"image/png", "image/jpeg"},
			},
		},
		{
			name: "WMS 1.1.1 latin-1",
			body: wmsLegacyCapabilities,
			want: &Capabilities{
				Service:       ServiceWMS,
				Version:       "1.1.1",
				Title:         "Carte géologique",
				Layers:        []LayerSummary{{Name: "geology"}},
				OutputFormats: []string{"image/gif"},
			},
		},
		{
			name: "WFS 2.0.0",
			body: wfsCapabilities,
			want: &Capabilities{
				Service:  ServiceWFS,
				Version:  "2.0.0",
				Title:    "Buildings",
				Abstract: "Building footprints",
				Keywords: []string{"buildings"},
				Layers: []LayerSummary{
					{Name: "ns:buildings", Title: "Buildings"},
					{Name: "ns:parcels"},
				},
				OutputFormats: []string{"application/gml+xml; version=3.2", "application/json"},
			},
		},
		{
			name: "WFS 1.0.0",
			body: wfsLegacyCapabilities,
			want: &Capabilities{
				Service:  ServiceWFS,
				Version:  "1.0.0",
				Title:    "Old roads",
				Abstract: "Legacy",
				Layers:   []LayerSummary{{Name: "roads"}},
			},
		},
		{
			name: "WMTS",
			body: wmtsCapabilities,
			want: &Capabilities{
				Service: ServiceWMTS,
				Version: "1.0.0",
				Title:   "Basemap tiles",
				Layers: []LayerSummary{
					{Name: "ortho", Title: "Orthophoto"},
					{Name: "plan", Title: "Plan"},
				},
				OutputFormats: []string{"image/jpeg", "image/png"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCapabilities(parseXML(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCapabilities_Unsupported(t *testing.T) {
	_, err := ParseCapabilities(parseXML(t, `<rss version="2.0"><channel/></rss>`))
	assert.ErrorContains(t, err, `"rss"`)
}

func TestCheckException(t *testing.T) {
	const requestURL = "https://example.com/ows?SERVICE=WMS"

	t.Run("service exception report", func(t *testing.T) {
		err := CheckException(parseXML(t, wmsException), requestURL)
		var excErr *ogcerr.ServiceExceptionError
		require.ErrorAs(t, err, &excErr)
		assert.Equal(t, "Unknown layer: roads", excErr.Message)
		assert.Equal(t, "LayerNotDefined", excErr.Code)
		assert.Equal(t, "layers", excErr.Locator)
		assert.Equal(t, requestURL, excErr.RequestURL)
	})

	t.Run("ows exception report", func(t *testing.T) {
		err := CheckException(parseXML(t, owsException), requestURL)
		var excErr *ogcerr.ServiceExceptionError
		require.ErrorAs(t, err, &excErr)
		assert.Equal(t, "Version 9.9.9 is not supported\nSupported: 2.0.0", excErr.Message)
		assert.Equal(t, "InvalidParameterValue", excErr.Code)
		assert.Equal(t, "version", excErr.Locator)
	})

	t.Run("capabilities", func(t *testing.T) {
		assert.NoError(t, CheckException(parseXML(t, wmsCapabilities), requestURL))
	})
}
