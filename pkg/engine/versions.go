package engine

func init() {
	Register("3.1", newJSONAdapter(shape{version: "3.1", viewQueryField: "child"}))
	Register("3.2", newJSONAdapter(shape{version: "3.2", viewQueryField: "plan"}))
	Register("3.4", newJSONAdapter(shape{version: "3.4", viewQueryField: "plan", mergeBySource: true}))
}
