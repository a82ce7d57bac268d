package views

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1f2933}
main{max-width:960px;margin:0 auto;padding:24px}
.steps{display:flex;gap:8px;list-style:none;padding:0;flex-wrap:wrap}
.steps li{padding:4px 10px;border-radius:12px;background:#e4e7eb;font-size:14px}
.steps li.done{background:#c6f6d5}
.steps li.current{background:#2563eb;color:#fff}
.step{background:#fff;border-radius:8px;padding:16px 24px;margin:16px 0}
form{display:inline-block;margin:4px 0}
button,.button{padding:6px 12px;border:1px solid #cbd2d9;border-radius:6px;background:#fff;cursor:pointer;text-decoration:none;color:inherit}
button.primary,.button.primary{background:#2563eb;border-color:#2563eb;color:#fff}
button.secondary{background:#f5f7fa}
button:disabled{opacity:.5;cursor:not-allowed}
textarea{width:100%;box-sizing:border-box;font-family:inherit}
nav{display:flex;gap:8px}
.alert{background:#fde8e8;border:1px solid #f8b4b4;padding:8px 12px;border-radius:6px;margin:8px 0}
.hint{color:#616e7c;font-size:14px}
.tag{background:#dbeafe;border-radius:8px;padding:0 6px;font-size:12px}
.table{overflow-x:auto}
table{border-collapse:collapse;width:100%}
th,td{border-bottom:1px solid #e4e7eb;padding:4px 8px;text-align:left}
.bar{height:12px;background:#e4e7eb;border-radius:6px;overflow:hidden}
.bar div{height:100%;background:#2563eb;transition:width .2s}
.processed li.loading{color:#616e7c}
.processed li.success::before{content:"\2713 ";color:#16a34a}
`

// progressScript follows the processing event stream and reloads the page
// once the run ends.
const progressScript = `
(function(){
  var es = new EventSource("/api/processing/events");
  es.addEventListener("progress", function(e){
    var p = JSON.parse(e.data);
    document.getElementById("bar").style.width = p.percent + "%";
    document.getElementById("percent").textContent = Math.round(p.percent) + "%";
    var list = document.getElementById("processed");
    list.innerHTML = "";
    (p.processed || []).forEach(function(item){
      var li = document.createElement("li");
      li.className = item.status;
      li.textContent = item.name;
      list.appendChild(li);
    });
  });
  es.addEventListener("complete", function(){ es.close(); location.reload(); });
  es.onerror = function(){ es.close(); setTimeout(function(){ location.reload(); }, 1000); };
})();
`
