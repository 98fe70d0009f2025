package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/geogotchi/geogotchi/pkg/geonames"
)

type nearbyFunc func(ctx context.Context, c *geonames.Client, at geonames.LatLng, opts geonames.NearbyOptions) ([]geonames.Record, error)

func nearbyPlace(ctx context.Context, c *geonames.Client, at geonames.LatLng, opts geonames.NearbyOptions) ([]geonames.Record, error) {
	return c.FindNearbyPlace(ctx, at, opts)
}

func nearbyToponym(ctx context.Context, c *geonames.Client, at geonames.LatLng, opts geonames.NearbyOptions) ([]geonames.Record, error) {
	return c.FindNearbyToponym(ctx, at, opts)
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

// nearbyFlags binds the options shared by the findNearby* commands.
type nearbyFlags struct {
	radius  float64
	maxRows int
	lang    string
	style   string
}

func (f *nearbyFlags) register(fs *pflag.FlagSet) {
	fs.Float64Var(&f.radius, "radius", 0, "search radius in km")
	fs.IntVar(&f.maxRows, "max-rows", 0, "maximum number of results")
	fs.StringVar(&f.lang, "lang", "", "language of place names")
	fs.StringVar(&f.style, "style", "", "SHORT, MEDIUM, LONG or FULL")
}

func (f *nearbyFlags) options(fs *pflag.FlagSet) geonames.NearbyOptions {
	opts := geonames.NearbyOptions{
		Lang:  f.lang,
		Style: geonames.Style(f.style),
	}
	if fs.Changed("radius") {
		opts.Radius = &f.radius
	}
	if fs.Changed("max-rows") {
		opts.MaxRows = &f.maxRows
	}
	return opts
}

func parseLatLng(args []string) (geonames.LatLng, error) {
	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return geonames.LatLng{}, usageErrorf("latitude %q is not a number", args[0])
	}
	lng, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return geonames.LatLng{}, usageErrorf("longitude %q is not a number", args[1])
	}
	return geonames.LatLng{Lat: lat, Lng: lng}, nil
}

func newNearbyCmd(a *app, use, short string, find nearbyFunc) *cobra.Command {
	var flags nearbyFlags
	cmd := &cobra.Command{
		Use:   use + " LAT LNG",
		Short: short,
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseLatLng(args)
			if err != nil {
				return err
			}
			records, err := find(cmd.Context(), a.client, at, flags.options(cmd.Flags()))
			if err != nil {
				return err
			}
			return a.printJSON(records)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newWikipediaCmd(a *app) *cobra.Command {
	var (
		flags          nearbyFlags
		rankWeight     float64
		distanceWeight float64
	)
	cmd := &cobra.Command{
		Use:   "wikipedia LAT LNG",
		Short: "Wikipedia articles near a point, ordered by rank and distance",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseLatLng(args)
			if err != nil {
				return err
			}
			opts := geonames.WikipediaOptions{NearbyOptions: flags.options(cmd.Flags())}
			if cmd.Flags().Changed("rank-weight") {
				opts.RankWeight = &rankWeight
			}
			if cmd.Flags().Changed("distance-weight") {
				opts.DistanceWeight = &distanceWeight
			}
			records, err := a.client.FindNearbyWikipedia(cmd.Context(), at, opts)
			if err != nil {
				return err
			}
			return a.printJSON(records)
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().Float64Var(&rankWeight, "rank-weight", geonames.DefaultWeight, "weight of the article rank, between 0 and 1")
	cmd.Flags().Float64Var(&distanceWeight, "distance-weight", geonames.DefaultWeight, "weight of the distance, between 0 and 1")
	return cmd
}

func newHierarchyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hierarchy GEONAME_ID",
		Short: "Ancestors of a place, from Earth down to the place itself",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return usageErrorf("geoname id %q is not an integer", args[0])
			}
			records, err := a.client.Hierarchy(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printJSON(records)
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		opts     geonames.SearchOptions
		maxRows  int
		startRow int
		fuzzy    float64
		style    string
		operator string
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Full text and name search",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			fs := cmd.Flags()
			if fs.Changed("max-rows") {
				opts.MaxRows = &maxRows
			}
			if fs.Changed("start-row") {
				opts.StartRow = &startRow
			}
			if fs.Changed("fuzzy") {
				opts.Fuzzy = &fuzzy
			}
			opts.Style = geonames.Style(style)
			opts.Operator = geonames.Operator(operator)
			page, err := a.client.SearchPage(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return a.printJSON(page)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.Q, "q", "", "search all attributes")
	fs.StringVar(&opts.Name, "name", "", "search place names only")
	fs.StringVar(&opts.NameEquals, "name-equals", "", "exact place name")
	fs.IntVar(&maxRows, "max-rows", 0, "maximum number of results")
	fs.IntVar(&startRow, "start-row", 0, "offset of the first result, for paging")
	fs.StringVar(&opts.Country, "country", "", "ISO-3166 country code")
	fs.StringVar(&opts.CountryBias, "country-bias", "", "list this country first")
	fs.StringVar(&opts.ContinentCode, "continent-code", "", "AF, AS, EU, NA, OC, SA or AN")
	fs.StringVar(&opts.FeatureClass, "feature-class", "", "feature class, for example P")
	fs.StringVar(&opts.FeatureCode, "feature-code", "", "feature code, for example PPLC")
	fs.StringVar(&opts.Lang, "lang", "", "language of place names")
	fs.StringVar(&style, "style", "", "SHORT, MEDIUM, LONG or FULL")
	fs.StringVar(&operator, "operator", "", "AND or OR")
	fs.Float64Var(&fuzzy, "fuzzy", 1, "fuzziness between 0 and 1")
	return cmd
}
