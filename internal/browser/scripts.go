package browser

import (
	"encoding/json"
	"strconv"
)

// Scripts run inside the extension service worker, where the chrome.windows,
// chrome.tabs and chrome.tabGroups APIs are available. Each returns a JSON
// envelope string: {ok, data} or {ok:false, error_code, error_message}.

const jsTabShape = `function __tab(t){return {id:t.id,title:t.title||"",url:t.url||t.pendingUrl||"",group_id:t.groupId,window_id:t.windowId};}
`

func jsProbe() string {
	return buildIIFE(false, `if (typeof chrome === "undefined" || !chrome.tabs || !chrome.tabGroups || !chrome.windows) {
return JSON.stringify({ok:false,error_code:"`+CodeExtensionNotFound+`",error_message:"tabs, tabGroups or windows API unavailable in target"});
}
return JSON.stringify({ok:true,data:{id:chrome.runtime && chrome.runtime.id || ""}});`)
}

func jsListWindows() string {
	return buildIIFE(true, `const ws = await chrome.windows.getAll({windowTypes:["normal","popup","panel","app","devtools"]});
return JSON.stringify({ok:true,data:ws.map(w => ({id:w.id,type:w.type}))});`)
}

func jsListTabs() string {
	return buildIIFE(true, jsTabShape+`const ts = await chrome.tabs.query({});
return JSON.stringify({ok:true,data:ts.map(__tab)});`)
}

func jsListGroups() string {
	return buildIIFE(true, `const gs = await chrome.tabGroups.query({});
return JSON.stringify({ok:true,data:gs.map(g => ({id:g.id,title:g.title||"",color:g.color,window_id:g.windowId}))});`)
}

func jsTabsInGroup(groupID int) string {
	return buildIIFE(true, jsTabShape+`const ts = await chrome.tabs.query({groupId:`+strconv.Itoa(groupID)+`});
return JSON.stringify({ok:true,data:ts.map(__tab)});`)
}

// jsGroupTabs merges into the first listed tab's group when it has one.
func jsGroupTabs(tabIDs []int) string {
	return buildIIFE(true, `const ids = `+jsJSON(tabIDs)+`;
let first;
try { first = await chrome.tabs.get(ids[0]); } catch (e) {
return JSON.stringify({ok:false,error_code:"`+CodeTabNotFound+`",error_message:String(e && e.message || e)});
}
const opts = {tabIds: ids};
if (first.groupId !== chrome.tabGroups.TAB_GROUP_ID_NONE) { opts.groupId = first.groupId; }
const gid = await chrome.tabs.group(opts);
return JSON.stringify({ok:true,data:gid});`)
}

func jsUpdateGroup(groupID int, title, color string) string {
	return buildIIFE(true, `const g = await chrome.tabGroups.update(`+strconv.Itoa(groupID)+`, {title:`+jsString(title)+`,color:`+jsString(color)+`});
if (!g) { return JSON.stringify({ok:false,error_code:"`+CodeGroupNotFound+`",error_message:"group not found"}); }
return JSON.stringify({ok:true,data:{id:g.id}});`)
}

func jsString(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func buildIIFE(async bool, body string) string {
	prefix := "(function(){\n"
	if async {
		prefix = "(async function(){\n"
	}
	return prefix + `try {
` + body + `
} catch (err) {
return JSON.stringify({ok:false,error_code:"` + CodeEvalFailure + `",error_message:String(err && err.message || err)});
}
})()`
}
