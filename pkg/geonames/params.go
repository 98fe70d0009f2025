package geonames

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

// Style is the verbosity of returned records.
type Style string

const (
	StyleShort  Style = "SHORT"
	StyleMedium Style = "MEDIUM"
	StyleLong   Style = "LONG"
	StyleFull   Style = "FULL"
)

// Operator combines search terms.
type Operator string

const (
	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
)

const (
	defaultStyle    = StyleShort
	defaultOperator = OperatorAnd
	defaultFuzzy    = 1.0
)

// LatLng is a WGS84 coordinate in decimal degrees.
type LatLng struct {
	Lat float64 `param:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `param:"lng" validate:"gte=-180,lte=180"`
}

// NearbyOptions are the optional arguments of the findNearby* endpoints.
// Nil and empty fields are not sent, so the service default applies.
type NearbyOptions struct {
	Radius  *float64 `param:"radius" validate:"omitempty,gte=0"`
	MaxRows *int     `param:"maxRows" validate:"omitempty,gte=0"`
	Lang    string   `param:"lang"`
	Style   Style    `param:"style" validate:"omitempty,oneof=SHORT MEDIUM LONG FULL"`
}

// WikipediaOptions extends NearbyOptions with the weights used to re-rank
// results. A nil weight means DefaultWeight.
type WikipediaOptions struct {
	NearbyOptions
	RankWeight     *float64 `param:"rankWeight" validate:"omitempty,gte=0,lte=1"`
	DistanceWeight *float64 `param:"distanceWeight" validate:"omitempty,gte=0,lte=1"`
}

func (o WikipediaOptions) weights() (float64, float64) {
	rw, dw := DefaultWeight, DefaultWeight
	if o.RankWeight != nil {
		rw = *o.RankWeight
	}
	if o.DistanceWeight != nil {
		dw = *o.DistanceWeight
	}
	return rw, dw
}

// SearchOptions are the arguments of the searchJSON endpoint. At least one of
// Q, Name and NameEquals must be set.
type SearchOptions struct {
	Q             string   `param:"q"`
	Name          string   `param:"name"`
	NameEquals    string   `param:"name_equals"`
	MaxRows       *int     `param:"maxRows" validate:"omitempty,gte=0"`
	StartRow      *int     `param:"startRow" validate:"omitempty,gte=0"`
	Country       string   `param:"country"`
	CountryBias   string   `param:"countryBias"`
	ContinentCode string   `param:"continentCode" validate:"omitempty,oneof=AF AS EU NA OC SA AN"`
	FeatureClass  string   `param:"featureClass"`
	FeatureCode   string   `param:"featureCode"`
	Lang          string   `param:"lang"`
	Style         Style    `param:"style" validate:"omitempty,oneof=SHORT MEDIUM LONG FULL"`
	Operator      Operator `param:"operator" validate:"omitempty,oneof=AND OR"`
	Fuzzy         *float64 `param:"fuzzy" validate:"omitempty,gte=0,lte=1"`
}

var validate = newValidator()

// newValidator reports field errors by query parameter name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("param"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateOptions(opts any) error {
	err := validate.Struct(opts)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		reason := "failed " + fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &InvalidArgumentError{Field: fe.Field(), Reason: reason}
	}
	return &InvalidArgumentError{Reason: err.Error()}
}

func baseParams(username string) url.Values {
	return url.Values{"username": []string{username}}
}

func nearbyParams(username string, at LatLng, opts NearbyOptions) (url.Values, error) {
	if err := validateOptions(at); err != nil {
		return nil, err
	}
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	params := baseParams(username)
	params.Set("lat", formatFloat(at.Lat))
	params.Set("lng", formatFloat(at.Lng))
	if opts.Radius != nil {
		params.Set("radius", formatFloat(*opts.Radius))
	}
	if opts.MaxRows != nil {
		params.Set("maxRows", strconv.Itoa(*opts.MaxRows))
	}
	setString(params, "lang", opts.Lang)
	params.Set("style", string(orDefault(opts.Style, defaultStyle)))
	return params, nil
}

func wikipediaParams(username string, at LatLng, opts WikipediaOptions) (url.Values, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	return nearbyParams(username, at, opts.NearbyOptions)
}

func searchParams(username string, opts SearchOptions) (url.Values, error) {
	if isBlank(opts.Q) && isBlank(opts.Name) && isBlank(opts.NameEquals) {
		return nil, &InvalidArgumentError{Field: "q", Reason: "one of q, name or name_equals is required"}
	}
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	params := baseParams(username)
	setString(params, "q", opts.Q)
	setString(params, "name", opts.Name)
	setString(params, "name_equals", opts.NameEquals)
	if opts.MaxRows != nil {
		params.Set("maxRows", strconv.Itoa(*opts.MaxRows))
	}
	if opts.StartRow != nil {
		params.Set("startRow", strconv.Itoa(*opts.StartRow))
	}
	setString(params, "country", opts.Country)
	setString(params, "countryBias", opts.CountryBias)
	setString(params, "continentCode", opts.ContinentCode)
	setString(params, "featureClass", opts.FeatureClass)
	setString(params, "featureCode", opts.FeatureCode)
	setString(params, "lang", opts.Lang)
	params.Set("style", string(orDefault(opts.Style, defaultStyle)))
	params.Set("operator", string(orDefault(opts.Operator, defaultOperator)))
	fuzzy := defaultFuzzy
	if opts.Fuzzy != nil {
		fuzzy = *opts.Fuzzy
	}
	params.Set("fuzzy", formatFloat(fuzzy))
	return params, nil
}

func hierarchyParams(username string, geonameID int64) (url.Values, error) {
	if geonameID <= 0 {
		return nil, &InvalidArgumentError{Field: keyGeonameID, Reason: fmt.Sprintf("must be positive, got %d", geonameID)}
	}
	params := baseParams(username)
	params.Set(keyGeonameID, strconv.FormatInt(geonameID, 10))
	return params, nil
}

// utf8Safe replaces invalid byte sequences and composes the string to NFC so
// equivalent spellings of a name produce the same query.
func utf8Safe(s string) string {
	return norm.NFC.String(strings.ToValidUTF8(s, "\uFFFD"))
}

func setString(params url.Values, key, value string) {
	if isBlank(value) {
		return
	}
	params.Set(key, utf8Safe(strings.TrimSpace(value)))
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}
